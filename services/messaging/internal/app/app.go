// Package app wires the messaging service together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/proerror77/Nova-sub006/pkg/database"
	"github.com/proerror77/Nova-sub006/pkg/health"
	"github.com/proerror77/Nova-sub006/pkg/kafka"
	"github.com/proerror77/Nova-sub006/pkg/middleware"
	"github.com/proerror77/Nova-sub006/pkg/tracing"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/config"
	messaginghttp "github.com/proerror77/Nova-sub006/services/messaging/internal/handler/http"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/repository/postgres"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/service"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/stream"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/ws"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// App holds the messaging service's long-lived components.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	producer       *kafka.Producer
	fanout         *stream.FanoutConsumer
	trimmer        *stream.Trimmer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp constructs the messaging service from configuration.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "messaging",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSample,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pool, err := database.NewPostgresPoolWithLogger(ctx, cfg.PostgresConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisConfig())
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.KafkaBrokers,
	}, logger)

	repo := postgres.NewMessageRepository(pool)
	publisher := stream.NewPublisher(redisClient, cfg.StreamMaxLen, logger)
	syncStore := stream.NewSyncStore(redisClient, cfg.SyncStateTTL())
	messagingService := service.NewMessagingService(repo, publisher, producer, logger)

	hub := ws.NewHub(logger)

	consumerTag := cfg.FanoutConsumerTag
	if consumerTag == "" {
		host, _ := os.Hostname()
		consumerTag = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	fanout := stream.NewFanoutConsumer(redisClient, cfg.FanoutGroup, consumerTag, hub, logger)

	trimmer := stream.NewTrimmer(redisClient, cfg.Retention(),
		time.Duration(cfg.TrimIntervalMin)*time.Minute, logger)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", health.PostgresChecker(pool))
	healthHandler.RegisterCritical("redis", health.RedisChecker(redisClient))
	healthHandler.RegisterNonCritical("kafka", health.KafkaChecker(cfg.KafkaBrokers))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.CORSAllowedOrigins
	corsConfig.Environment = cfg.Environment

	router := messaginghttp.NewRouter(messagingService, hub, publisher, syncStore, healthHandler, logger, corsConfig)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No blanket read/write timeouts: WebSocket connections outlive them.
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		producer:       producer,
		fanout:         fanout,
		trimmer:        trimmer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server, the fanout consumer, and the trimmer, blocking
// until the context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("http server starting", slog.Int("port", a.cfg.HTTPPort))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := a.fanout.Start(ctx); err != nil {
			errCh <- fmt.Errorf("fanout consumer: %w", err)
		}
	}()

	go func() {
		if err := a.trimmer.Run(ctx); err != nil {
			errCh <- fmt.Errorf("stream trimmer: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		return a.Shutdown()
	case err := <-errCh:
		a.logger.Error("component failed", slog.String("error", err.Error()))
		_ = a.Shutdown()
		return err
	}
}

// Shutdown stops the HTTP server and closes all connections.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("shutdown http server: %w", err)
	}
	if err := a.producer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close producer: %w", err)
	}
	if err := a.redisClient.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close redis: %w", err)
	}
	a.pool.Close()
	if err := a.tracerShutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shutdown tracer: %w", err)
	}

	a.logger.Info("messaging service stopped")
	return firstErr
}
