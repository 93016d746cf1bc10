package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/proerror77/Nova-sub006/pkg/config"
	"github.com/proerror77/Nova-sub006/pkg/database"
)

// Config holds all configuration for the messaging service.
type Config struct {
	Environment string `env:"NOVA_ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"NOVA_LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"NOVA_MESSAGING_HTTP_PORT" envDefault:"8004"`

	// PostgreSQL
	PostgresHost string `env:"NOVA_POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"NOVA_POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"NOVA_POSTGRES_USER" envDefault:"nova"`
	PostgresPass string `env:"NOVA_POSTGRES_PASSWORD" envDefault:"nova_secret"`
	PostgresDB   string `env:"NOVA_MESSAGING_DB_NAME" envDefault:"messaging_db"`
	PostgresSSL  string `env:"NOVA_POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis
	RedisAddr     string `env:"NOVA_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"NOVA_REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"NOVA_REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"NOVA_KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Streams
	StreamMaxLen      int64 `env:"NOVA_MESSAGING_STREAM_MAXLEN" envDefault:"1000"`
	RetentionHours    int   `env:"NOVA_MESSAGING_RETENTION_HOURS" envDefault:"24"`
	TrimIntervalMin   int   `env:"NOVA_MESSAGING_TRIM_INTERVAL_MIN" envDefault:"15"`
	SyncStateTTLDays  int   `env:"NOVA_MESSAGING_SYNC_TTL_DAYS" envDefault:"30"`
	FanoutGroup       string `env:"NOVA_MESSAGING_FANOUT_GROUP" envDefault:"messaging-service"`
	FanoutConsumerTag string `env:"NOVA_MESSAGING_CONSUMER_TAG" envDefault:""`

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
		return nil, fmt.Errorf("load messaging config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.StreamMaxLen < 1 {
		return nil, fmt.Errorf("invalid stream maxlen: %d", cfg.StreamMaxLen)
	}
	if cfg.RetentionHours < 1 {
		return nil, fmt.Errorf("invalid retention hours: %d", cfg.RetentionHours)
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

// RedisConfig maps the flat env fields onto the shared Redis configuration,
// keeping the default pool and timeout tuning.
func (c *Config) RedisConfig() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Addr = c.RedisAddr
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// Retention is the stream retention window.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// SyncStateTTL is how long per-client sync state lives without updates.
func (c *Config) SyncStateTTL() time.Duration {
	return time.Duration(c.SyncStateTTLDays) * 24 * time.Hour
}
