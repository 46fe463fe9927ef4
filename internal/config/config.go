package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string   `env:"BASE_URL"`
	Database    Database `envPrefix:"DATABASE_"`
	Auth        Auth     `envPrefix:"AUTH_"`

	Paypal    Paypal    `envPrefix:"PAYPAL_"`
	Nets      Nets      `envPrefix:"NETS_"`
	BrainTree Braintree `envPrefix:"BRAINTREE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Kafka     Kafka     `envPrefix:"KAFKA_"`
	Payment   Payment   `envPrefix:"PAYMENT_"`
}

type Database struct {
	Driver string `env:"DRIVER" envDefault:"mysql"` // mysql, sqlite
	URL    string `env:"URL"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Paypal struct {
	BaseApiURL   string `env:"BASE_API_URL" envDefault:"https://api-m.sandbox.paypal.com"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	WebhookID    string `env:"WEBHOOK_ID"`
	Currency     string `env:"CURRENCY" envDefault:"SGD"`
}

type Nets struct {
	BaseApiURL string `env:"BASE_API_URL" envDefault:"https://sandbox.nets.openapipaas.com"`
	APIKey     string `env:"API_KEY"`
	ProjectID  string `env:"PROJECT_ID"`
	TxnID      string `env:"TXN_ID"`
}

type Braintree struct {
	Environment string `env:"ENVIRONMENT"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

// Redis is optional: without an address finalize notifications stay in-process.
type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// Kafka is optional: without brokers domain events are dropped.
type Kafka struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"payment-events"`
}

type Payment struct {
	SSEWait        time.Duration `env:"SSE_WAIT" envDefault:"2m"`
	QRPollInterval time.Duration `env:"QR_POLL_INTERVAL" envDefault:"5s"`
	QRMaxPolls     int           `env:"QR_MAX_POLLS" envDefault:"60"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
