// Package app wires the notification service together.
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
	"github.com/proerror77/Nova-sub006/pkg/tracing"
	"github.com/proerror77/Nova-sub006/services/notification/internal/channel"
	channelmock "github.com/proerror77/Nova-sub006/services/notification/internal/channel/mock"
	"github.com/proerror77/Nova-sub006/services/notification/internal/config"
	"github.com/proerror77/Nova-sub006/services/notification/internal/domain"
	notificationhttp "github.com/proerror77/Nova-sub006/services/notification/internal/handler/http"
	"github.com/proerror77/Nova-sub006/services/notification/internal/provider"
	providermock "github.com/proerror77/Nova-sub006/services/notification/internal/provider/mock"
	"github.com/proerror77/Nova-sub006/services/notification/internal/repository/postgres"
	"github.com/proerror77/Nova-sub006/services/notification/internal/service"
	"github.com/proerror77/Nova-sub006/services/notification/internal/worker"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// App holds the notification service's long-lived components.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	producer       *kafka.Producer
	consumer       *kafka.Consumer
	worker         *worker.Worker
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp constructs the notification service from configuration.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "notification",
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

	// Mock gateways until real APNs/FCM credentials are provisioned.
	providers := provider.Registry{}
	if cfg.ChannelEnabled(domain.ChannelPush) {
		providers[domain.PlatformIOS] = providermock.NewAPNs(logger)
		providers[domain.PlatformAndroid] = providermock.NewFCM(logger)
	}
	channels := map[string]channel.Sender{}
	if cfg.ChannelEnabled(domain.ChannelEmail) {
		channels[domain.ChannelEmail] = channelmock.NewEmail(logger)
	}
	if cfg.ChannelEnabled(domain.ChannelInApp) {
		channels[domain.ChannelInApp] = channelmock.NewInApp(logger)
	}

	repo := postgres.NewJobRepository(pool)
	notificationService := service.NewNotificationService(repo, providers, channels, producer, cfg.SendPolicy(), logger)

	dlq := kafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.ConsumerGroup,
		Topic:   kafka.TopicNotificationEvents,
	}, notificationService.HandleEvent, dlq, logger)

	queueWorker := worker.NewWorker(notificationService, cfg.WorkerInterval(), cfg.WorkerBatch, logger)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", health.PostgresChecker(pool))
	healthHandler.RegisterNonCritical("kafka", health.KafkaChecker(cfg.KafkaBrokers))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.CORSAllowedOrigins
	corsConfig.Environment = cfg.Environment

	router := notificationhttp.NewRouter(notificationService, healthHandler, logger, corsConfig)

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
		consumer:       consumer,
		worker:         queueWorker,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server, the event consumer, and the queue worker,
// blocking until the context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 3)

	go func() {
		a.logger.Info("http server starting", slog.Int("port", a.cfg.HTTPPort))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := a.consumer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("consumer: %w", err)
		}
	}()

	go func() {
		if err := a.worker.Run(ctx); err != nil {
			errCh <- fmt.Errorf("queue worker: %w", err)
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
	if err := a.consumer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close consumer: %w", err)
	}
	if err := a.producer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close producer: %w", err)
	}
	a.pool.Close()
	if err := a.tracerShutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shutdown tracer: %w", err)
	}

	a.logger.Info("notification service stopped")
	return firstErr
}
