package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"storefront-payments/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DefaultChannel = "payment:finalized"

type message struct {
	Key   string            `json:"key"`
	Event dto.FinalizeEvent `json:"event"`
}

// RedisNotifier fans finalize outcomes out to every API instance. Subscribers
// stay in the local registry; Run feeds it from the shared channel.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
	local   *Registry
	logger  zerolog.Logger
}

func NewRedisNotifier(rdb *redis.Client, channel string, local *Registry, logger zerolog.Logger) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{
		rdb:     rdb,
		channel: channel,
		local:   local,
		logger:  logger.With().Str("component", "redis_notifier").Logger(),
	}
}

func (n *RedisNotifier) Subscribe(key string) (<-chan dto.FinalizeEvent, func()) {
	return n.local.Subscribe(key)
}

// Notify publishes the event. When redis is unreachable the event is still
// delivered to this instance's waiters and the publish error is returned.
func (n *RedisNotifier) Notify(ctx context.Context, key string, event dto.FinalizeEvent) error {
	payload, err := json.Marshal(message{Key: key, Event: event})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	if err := n.rdb.Publish(ctx, n.channel, payload).Err(); err != nil {
		_ = n.local.Notify(ctx, key, event)
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Run dispatches published events to local waiters until ctx is done.
func (n *RedisNotifier) Run(ctx context.Context) error {
	pubsub := n.rdb.Subscribe(ctx, n.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", n.channel, err)
	}
	n.logger.Info().Str("channel", n.channel).Msg("listening for finalize notifications")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				n.logger.Warn().Err(err).Msg("drop malformed notification")
				continue
			}
			_ = n.local.Notify(ctx, m.Key, m.Event)
		}
	}
}
