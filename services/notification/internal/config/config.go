// Package config loads the notification service configuration from the
// environment.
package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/proerror77/Nova-sub006/pkg/config"
	"github.com/proerror77/Nova-sub006/pkg/database"
	"github.com/proerror77/Nova-sub006/pkg/resilience"
)

// Config holds all configuration for the notification service.
type Config struct {
	Environment string `env:"NOVA_ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"NOVA_LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"NOVA_NOTIFICATION_HTTP_PORT" envDefault:"8005"`

	// PostgreSQL
	PostgresHost string `env:"NOVA_POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"NOVA_POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"NOVA_POSTGRES_USER" envDefault:"nova"`
	PostgresPass string `env:"NOVA_POSTGRES_PASSWORD" envDefault:"nova_secret"`
	PostgresDB   string `env:"NOVA_NOTIFICATION_DB_NAME" envDefault:"notification_db"`
	PostgresSSL  string `env:"NOVA_POSTGRES_SSL_MODE" envDefault:"disable"`

	// Kafka
	KafkaBrokers  []string `env:"NOVA_KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ConsumerGroup string   `env:"NOVA_NOTIFICATION_CONSUMER_GROUP" envDefault:"notification-service"`

	// Worker
	WorkerIntervalSec int `env:"NOVA_NOTIFICATION_WORKER_INTERVAL_SEC" envDefault:"5"`
	WorkerBatch       int `env:"NOVA_NOTIFICATION_WORKER_BATCH" envDefault:"50"`

	// Send retry backoff
	SendBackoffMS    int `env:"NOVA_NOTIFICATION_SEND_BACKOFF_MS" envDefault:"100"`
	SendMaxBackoffMS int `env:"NOVA_NOTIFICATION_SEND_MAX_BACKOFF_MS" envDefault:"5000"`

	// Channels with a configured sender. A dispatch to anything else is
	// reported as abandoned.
	EnabledChannels []string `env:"NOVA_NOTIFICATION_CHANNELS" envDefault:"push,email,in_app" envSeparator:","`

	// Tracing
	TracingEnabled bool    `env:"NOVA_TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint   string  `env:"NOVA_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TraceSample    float64 `env:"NOVA_TRACE_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"NOVA_CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load notification config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.WorkerIntervalSec < 1 {
		return nil, fmt.Errorf("invalid worker interval: %d", cfg.WorkerIntervalSec)
	}
	if cfg.WorkerBatch < 1 {
		return nil, fmt.Errorf("invalid worker batch: %d", cfg.WorkerBatch)
	}
	if cfg.SendBackoffMS < 1 || cfg.SendMaxBackoffMS < cfg.SendBackoffMS {
		return nil, fmt.Errorf("invalid send backoff: %dms-%dms", cfg.SendBackoffMS, cfg.SendMaxBackoffMS)
	}

	env, err := pkgconfig.ParseEnvironment(cfg.Environment)
	if err != nil {
		return nil, err
	}
	if err := env.RequireInProduction("NOVA_POSTGRES_PASSWORD", cfg.PostgresPass); err != nil {
		return nil, err
	}

	// Outside development, refuse to run with the default credential.
	if env != pkgconfig.EnvDevelopment && env != pkgconfig.EnvLocal && cfg.PostgresPass == "nova_secret" {
		return nil, fmt.Errorf("NOVA_POSTGRES_PASSWORD must be explicitly set in %q mode", cfg.Environment)
	}

	return cfg, nil
}

// PostgresConfig maps the flat env fields onto the shared pool configuration.
func (c *Config) PostgresConfig() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPass,
		DBName:   c.PostgresDB,
		SSLMode:  c.PostgresSSL,
	}
}

// WorkerInterval is the queue drain interval.
func (c *Config) WorkerInterval() time.Duration {
	return time.Duration(c.WorkerIntervalSec) * time.Second
}

// SendPolicy is the per-job provider retry policy. MaxRetries is set per job
// from its remaining retries.
func (c *Config) SendPolicy() resilience.Policy {
	return resilience.Policy{
		Backoff:    time.Duration(c.SendBackoffMS) * time.Millisecond,
		MaxBackoff: time.Duration(c.SendMaxBackoffMS) * time.Millisecond,
		Jitter:     true,
	}
}

// ChannelEnabled reports whether a channel has a configured sender.
func (c *Config) ChannelEnabled(name string) bool {
	for _, ch := range c.EnabledChannels {
		if ch == name {
			return true
		}
	}
	return false
}
