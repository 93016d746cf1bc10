// Package app wires the identity service together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proerror77/Nova-sub006/pkg/database"
	"github.com/proerror77/Nova-sub006/pkg/health"
	"github.com/proerror77/Nova-sub006/pkg/kafka"
	"github.com/proerror77/Nova-sub006/pkg/middleware"
	"github.com/proerror77/Nova-sub006/pkg/outbox"
	"github.com/proerror77/Nova-sub006/pkg/tracing"
	"github.com/proerror77/Nova-sub006/services/identity/internal/config"
	identityhttp "github.com/proerror77/Nova-sub006/services/identity/internal/handler/http"
	"github.com/proerror77/Nova-sub006/services/identity/internal/repository/postgres"
	"github.com/proerror77/Nova-sub006/services/identity/internal/service"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// App holds the identity service's long-lived components.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	producer       *kafka.Producer
	drainer        *outbox.Drainer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp constructs the identity service from configuration.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "identity",
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

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.KafkaBrokers,
	}, logger)

	drainerCfg := outbox.DefaultDrainerConfig()
	drainerCfg.PollInterval = time.Duration(cfg.OutboxPollIntervalMS) * time.Millisecond
	drainerCfg.BatchSize = cfg.OutboxBatchSize
	drainer := outbox.NewDrainer(pool, producer, drainerCfg, logger)

	userRepo := postgres.NewUserRepository(pool)
	userService := service.NewUserService(pool, userRepo, outbox.NewStore(pool), logger)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", health.PostgresChecker(pool))
	healthHandler.RegisterNonCritical("kafka", health.KafkaChecker(cfg.KafkaBrokers))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.CORSAllowedOrigins
	corsConfig.Environment = cfg.Environment

	router := identityhttp.NewRouter(userService, healthHandler, logger, corsConfig)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		producer:       producer,
		drainer:        drainer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and the outbox drainer, blocking until the
// context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("http server starting", slog.Int("port", a.cfg.HTTPPort))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := a.drainer.Run(ctx); err != nil {
			errCh <- fmt.Errorf("outbox drainer: %w", err)
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
	a.pool.Close()
	if err := a.tracerShutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shutdown tracer: %w", err)
	}

	a.logger.Info("identity service stopped")
	return firstErr
}
