package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/proerror77/Nova-sub006/pkg/config"
	"github.com/proerror77/Nova-sub006/pkg/database"
	"github.com/proerror77/Nova-sub006/services/feed/internal/ranking"
	"github.com/proerror77/Nova-sub006/services/feed/internal/service"
)

// Config holds all configuration for the feed service.
type Config struct {
	Environment string `env:"NOVA_ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"NOVA_LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"NOVA_FEED_HTTP_PORT" envDefault:"8003"`

	// PostgreSQL
	PostgresHost string `env:"NOVA_POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"NOVA_POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"NOVA_POSTGRES_USER" envDefault:"nova"`
	PostgresPass string `env:"NOVA_POSTGRES_PASSWORD" envDefault:"nova_secret"`
	PostgresDB   string `env:"NOVA_FEED_DB_NAME" envDefault:"feed_db"`
	PostgresSSL  string `env:"NOVA_POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis
	RedisAddr     string `env:"NOVA_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"NOVA_REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"NOVA_REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers  []string `env:"NOVA_KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ConsumerGroup string   `env:"NOVA_FEED_CONSUMER_GROUP" envDefault:"feed-service"`

	// Ranking weights. They must sum to 1.0; startup fails otherwise.
	WeightFreshness  float64 `env:"NOVA_FEED_WEIGHT_FRESHNESS" envDefault:"0.25"`
	WeightCompletion float64 `env:"NOVA_FEED_WEIGHT_COMPLETION" envDefault:"0.10"`
	WeightEngagement float64 `env:"NOVA_FEED_WEIGHT_ENGAGEMENT" envDefault:"0.25"`
	WeightAffinity   float64 `env:"NOVA_FEED_WEIGHT_AFFINITY" envDefault:"0.20"`
	WeightDeepModel  float64 `env:"NOVA_FEED_WEIGHT_DEEP_MODEL" envDefault:"0.20"`

	// Ranking pipeline
	RankParallelism int `env:"NOVA_FEED_RANK_PARALLELISM" envDefault:"8"`
	DiversifyK      int `env:"NOVA_FEED_DIVERSIFY_K" envDefault:"5"`
	CandidateLimit  int `env:"NOVA_FEED_CANDIDATE_LIMIT" envDefault:"500"`

	// Read path
	RecentWindowHours int `env:"NOVA_FEED_RECENT_WINDOW_HOURS" envDefault:"48"`
	PageTTLSeconds    int `env:"NOVA_FEED_PAGE_TTL_SECONDS" envDefault:"30"`
	DefaultPageSize   int `env:"NOVA_FEED_DEFAULT_PAGE_SIZE" envDefault:"20"`
	MaxPageSize       int `env:"NOVA_FEED_MAX_PAGE_SIZE" envDefault:"100"`

	// Refresh jobs
	TrendingWindowHours   int `env:"NOVA_FEED_TRENDING_WINDOW_HOURS" envDefault:"24"`
	TrendingIntervalMin   int `env:"NOVA_FEED_TRENDING_INTERVAL_MIN" envDefault:"5"`
	SuggestedIntervalMin  int `env:"NOVA_FEED_SUGGESTED_INTERVAL_MIN" envDefault:"15"`
	WarmerIntervalMin     int `env:"NOVA_FEED_WARMER_INTERVAL_MIN" envDefault:"10"`
	WarmerLookbackMinutes int `env:"NOVA_FEED_WARMER_LOOKBACK_MIN" envDefault:"60"`

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
		return nil, fmt.Errorf("load feed config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.CandidateLimit < 1 {
		return nil, fmt.Errorf("invalid candidate limit: %d", cfg.CandidateLimit)
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		return nil, fmt.Errorf("max page size %d below default %d", cfg.MaxPageSize, cfg.DefaultPageSize)
	}
	if err := cfg.Weights().Validate(); err != nil {
		return nil, err
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

// Weights returns the configured ranking blend.
func (c *Config) Weights() ranking.Weights {
	return ranking.Weights{
		Freshness:  c.WeightFreshness,
		Completion: c.WeightCompletion,
		Engagement: c.WeightEngagement,
		Affinity:   c.WeightAffinity,
		DeepModel:  c.WeightDeepModel,
	}
}

// ServiceConfig returns the feed service tuning derived from the env fields.
func (c *Config) ServiceConfig() service.Config {
	return service.Config{
		CandidateLimit:  c.CandidateLimit,
		RecentWindow:    time.Duration(c.RecentWindowHours) * time.Hour,
		PageTTL:         time.Duration(c.PageTTLSeconds) * time.Second,
		DefaultPageSize: c.DefaultPageSize,
		MaxPageSize:     c.MaxPageSize,
	}
}
