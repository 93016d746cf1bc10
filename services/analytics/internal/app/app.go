// Package app wires the analytics service together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/proerror77/Nova-sub006/pkg/database"
	"github.com/proerror77/Nova-sub006/pkg/health"
	"github.com/proerror77/Nova-sub006/pkg/kafka"
	"github.com/proerror77/Nova-sub006/pkg/middleware"
	"github.com/proerror77/Nova-sub006/services/analytics/internal/cdc"
	"github.com/proerror77/Nova-sub006/services/analytics/internal/config"
	"github.com/proerror77/Nova-sub006/services/analytics/internal/ingest"
	"github.com/proerror77/Nova-sub006/services/analytics/internal/repository/postgres"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// cdcTopics lists the change streams this service ingests.
var cdcTopics = []string{
	kafka.TopicCDCPosts,
	kafka.TopicCDCFollows,
	kafka.TopicCDCComments,
	kafka.TopicCDCLikes,
}

// App holds the analytics service's long-lived components.
type App struct {
	cfg          *config.Config
	logger       *slog.Logger
	pool         *pgxpool.Pool
	deduper      *kafka.Deduper
	producer     *kafka.Producer
	cdcConsumers []*cdc.Consumer
	batcher      *ingest.Batcher
	httpServer   *http.Server
}

// NewApp constructs the analytics service from configuration.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pool, err := database.NewPostgresPoolWithLogger(ctx, cfg.PostgresConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	repo := postgres.NewAnalyticsRepository(pool)
	deduper := kafka.NewDeduper(cfg.DedupTTL, cfg.DedupTTL/4)
	dlq := kafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.KafkaBrokers}, logger)
	notifier := cdc.NewFeedNotifier(producer)

	consumers := make([]*cdc.Consumer, 0, len(cdcTopics))
	for _, topic := range cdcTopics {
		consumers = append(consumers, cdc.NewConsumer(cdc.ConsumerConfig{
			Brokers:     cfg.KafkaBrokers,
			GroupID:     cfg.ConsumerGroup,
			Topic:       topic,
			MaxInflight: cfg.CDCMaxInflight,
			MaxSkew:     cfg.CDCMaxSkew,
		}, repo, repo, deduper, dlq, notifier, logger))
	}

	batcher := ingest.NewBatcher(ingest.BatcherConfig{
		Brokers:       cfg.KafkaBrokers,
		GroupID:       cfg.ConsumerGroup,
		Topic:         kafka.TopicFeedEvents,
		BatchSize:     cfg.EventBatchSize,
		FlushInterval: cfg.EventFlushInterval,
	}, repo, deduper, logger)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", health.PostgresChecker(pool))
	healthHandler.RegisterNonCritical("kafka", health.KafkaChecker(cfg.KafkaBrokers))

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("analytics"))
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &App{
		cfg:          cfg,
		logger:       logger,
		pool:         pool,
		deduper:      deduper,
		producer:     producer,
		cdcConsumers: consumers,
		batcher:      batcher,
		httpServer:   httpServer,
	}, nil
}

// Run starts the consumers and the health server, blocking until the context
// is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, len(a.cdcConsumers)+2)

	for _, c := range a.cdcConsumers {
		go func(c *cdc.Consumer) {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("cdc consumer: %w", err)
			}
		}(c)
	}

	go func() {
		if err := a.batcher.Start(ctx); err != nil {
			errCh <- fmt.Errorf("event batcher: %w", err)
		}
	}()

	go func() {
		a.logger.Info("http server starting", slog.Int("port", a.cfg.HTTPPort))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
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

// Shutdown stops the consumers and closes all connections.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("shutdown http server: %w", err)
	}
	for _, c := range a.cdcConsumers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.batcher.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.producer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close producer: %w", err)
	}
	a.deduper.Close()
	a.pool.Close()

	a.logger.Info("analytics service stopped")
	return firstErr
}
