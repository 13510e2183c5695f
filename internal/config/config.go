// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN for the membership mirror.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// WorkOSAPIKey is the bearer key for WorkOS read calls (user fetch, enumeration).
	WorkOSAPIKey string `mapstructure:"WORKOS_API_KEY"`
	// WorkOSBaseURL overrides the WorkOS API base URL; used in tests and staging.
	WorkOSBaseURL string `mapstructure:"WORKOS_BASE_URL"`
	// WorkOSWebhookSecret is the shared secret for webhook signature verification.
	// Empty disables verification (development only; logged loudly at startup and per request).
	WorkOSWebhookSecret string `mapstructure:"WORKOS_WEBHOOK_SECRET"`
	// WebhookTolerance is the max |now - signature timestamp| for a delivery to be accepted (e.g. "300s").
	WebhookTolerance string `mapstructure:"WEBHOOK_TOLERANCE"`
	// IdPHTTPTimeout is the per-request timeout for WorkOS read calls (e.g. "15s").
	IdPHTTPTimeout string `mapstructure:"IDP_HTTP_TIMEOUT"`
	// RedisAddr is the Redis host:port for the cache invalidation signal. Empty runs with an in-process signal only.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the Redis auth password, if any.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RedisDB is the Redis logical database index.
	RedisDB int `mapstructure:"REDIS_DB"`
	// ReconcileBatchSize bounds how many organizations the backfill processes concurrently.
	ReconcileBatchSize int `mapstructure:"RECONCILE_BATCH_SIZE"`
	// OperatorToken guards the internal reconcile route. Empty disables the route.
	OperatorToken string `mapstructure:"OPERATOR_TOKEN"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// Telemetry (optional). When Kafka brokers are set, processed webhook events are emitted to Kafka.
	// SyncEventsKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	SyncEventsKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SyncEventsKafkaTopic is the Kafka topic for sync event records (default membersync-events).
	SyncEventsKafkaTopic string `mapstructure:"SYNC_EVENTS_KAFKA_TOPIC"`
	// OTLPEndpoint is the OTLP gRPC endpoint for metrics and traces. Empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints (standard OTEL_EXPORTER_OTLP_INSECURE).
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("WORKOS_API_KEY", "")
	v.SetDefault("WORKOS_BASE_URL", "https://api.workos.com")
	v.SetDefault("WORKOS_WEBHOOK_SECRET", "")
	v.SetDefault("WEBHOOK_TOLERANCE", "300s")
	v.SetDefault("IDP_HTTP_TIMEOUT", "15s")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RECONCILE_BATCH_SIZE", 10)
	v.SetDefault("OPERATOR_TOKEN", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SYNC_EVENTS_KAFKA_TOPIC", "membersync-events")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.WorkOSWebhookSecret == "" && cfg.Env == "production" {
		return nil, errors.New("config: WORKOS_WEBHOOK_SECRET must be set when APP_ENV=production")
	}

	if cfg.ReconcileBatchSize <= 0 {
		cfg.ReconcileBatchSize = 10
	}

	return &cfg, nil
}

// WebhookToleranceDuration parses WebhookTolerance as a time.Duration. Returns 300s if unset or invalid.
func (c *Config) WebhookToleranceDuration() time.Duration {
	d, err := time.ParseDuration(c.WebhookTolerance)
	if err != nil || d <= 0 {
		return 300 * time.Second
	}
	return d
}

// IdPTimeout parses IdPHTTPTimeout as a time.Duration. Returns 15s if unset or invalid.
func (c *Config) IdPTimeout() time.Duration {
	d, err := time.ParseDuration(c.IdPHTTPTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// SyncEventsKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the sync-event stream is enabled (non-empty list) and to create the producer.
func (c *Config) SyncEventsKafkaBrokersList() []string {
	if c == nil || c.SyncEventsKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.SyncEventsKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
