package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/proerror77/Nova-sub006/pkg/config"
	"github.com/proerror77/Nova-sub006/pkg/database"
)

// Config holds all configuration for the analytics service.
type Config struct {
	Environment string `env:"NOVA_ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"NOVA_LOG_LEVEL" envDefault:"info"`

	// HTTP server (health + metrics only)
	HTTPPort int `env:"NOVA_ANALYTICS_HTTP_PORT" envDefault:"8002"`

	// PostgreSQL
	PostgresHost string `env:"NOVA_POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"NOVA_POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"NOVA_POSTGRES_USER" envDefault:"nova"`
	PostgresPass string `env:"NOVA_POSTGRES_PASSWORD" envDefault:"nova_secret"`
	PostgresDB   string `env:"NOVA_ANALYTICS_DB_NAME" envDefault:"analytics_db"`
	PostgresSSL  string `env:"NOVA_POSTGRES_SSL_MODE" envDefault:"disable"`

	// Kafka
	KafkaBrokers  []string `env:"NOVA_KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ConsumerGroup string   `env:"NOVA_ANALYTICS_CONSUMER_GROUP" envDefault:"analytics-service"`

	// CDC consumer
	CDCMaxInflight int           `env:"NOVA_CDC_MAX_INFLIGHT" envDefault:"16"`
	CDCMaxSkew     time.Duration `env:"NOVA_CDC_MAX_SKEW" envDefault:"12h"`

	// Events batcher
	EventBatchSize     int           `env:"NOVA_EVENT_BATCH_SIZE" envDefault:"200"`
	EventFlushInterval time.Duration `env:"NOVA_EVENT_FLUSH_INTERVAL" envDefault:"500ms"`

	// Dedup
	DedupTTL time.Duration `env:"NOVA_ANALYTICS_DEDUP_TTL" envDefault:"1h"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load analytics config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.CDCMaxInflight < 1 {
		return nil, fmt.Errorf("invalid CDC max inflight: %d", cfg.CDCMaxInflight)
	}
	if cfg.EventBatchSize < 1 {
		return nil, fmt.Errorf("invalid event batch size: %d", cfg.EventBatchSize)
	}

	env, err := pkgconfig.ParseEnvironment(cfg.Environment)
	if err != nil {
		return nil, err
	}
	if err := env.RequireInProduction("NOVA_POSTGRES_PASSWORD", cfg.PostgresPass); err != nil {
		return nil, err
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
