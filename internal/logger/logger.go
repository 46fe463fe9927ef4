package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"storefront-payments/internal/config"

	"github.com/rs/zerolog"
)

// New builds the root logger. Format "console" is meant for local runs,
// anything else writes JSON lines.
func New(cfg config.Log, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
