package config

import (
	"fmt"

	pkgconfig "github.com/proerror77/Nova-sub006/pkg/config"
	"github.com/proerror77/Nova-sub006/pkg/database"
)

// Config holds all configuration for the identity service.
type Config struct {
	Environment string `env:"NOVA_ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"NOVA_LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"NOVA_IDENTITY_HTTP_PORT" envDefault:"8001"`

	// PostgreSQL
	PostgresHost string `env:"NOVA_POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"NOVA_POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"NOVA_POSTGRES_USER" envDefault:"nova"`
	PostgresPass string `env:"NOVA_POSTGRES_PASSWORD" envDefault:"nova_secret"`
	PostgresDB   string `env:"NOVA_IDENTITY_DB_NAME" envDefault:"identity_db"`
	PostgresSSL  string `env:"NOVA_POSTGRES_SSL_MODE" envDefault:"disable"`

	// Kafka
	KafkaBrokers []string `env:"NOVA_KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Outbox drainer
	OutboxPollIntervalMS int `env:"NOVA_IDENTITY_OUTBOX_POLL_MS" envDefault:"200"`
	OutboxBatchSize      int `env:"NOVA_IDENTITY_OUTBOX_BATCH" envDefault:"100"`

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
		return nil, fmt.Errorf("load identity config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.OutboxBatchSize < 1 {
		return nil, fmt.Errorf("invalid outbox batch size: %d", cfg.OutboxBatchSize)
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
