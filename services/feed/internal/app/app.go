// Package app wires the feed service together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/proerror77/Nova-sub006/pkg/cache"
	"github.com/proerror77/Nova-sub006/pkg/database"
	"github.com/proerror77/Nova-sub006/pkg/health"
	"github.com/proerror77/Nova-sub006/pkg/jobs"
	"github.com/proerror77/Nova-sub006/pkg/kafka"
	"github.com/proerror77/Nova-sub006/pkg/middleware"
	"github.com/proerror77/Nova-sub006/pkg/tracing"
	"github.com/proerror77/Nova-sub006/services/feed/internal/config"
	feedhttp "github.com/proerror77/Nova-sub006/services/feed/internal/handler/http"
	"github.com/proerror77/Nova-sub006/services/feed/internal/ranking"
	"github.com/proerror77/Nova-sub006/services/feed/internal/repository/postgres"
	"github.com/proerror77/Nova-sub006/services/feed/internal/service"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// App holds the feed service's long-lived components.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	consumers      []*kafka.Consumer
	runner         *jobs.Runner
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp constructs the feed service from configuration.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "feed",
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
	unifiedCache := cache.New(redisClient, logger)

	// No watch-progress source exists yet, so the completion weight is folded
	// into the live signals until the candidate query populates it.
	ranker, err := ranking.NewRanker(cfg.Weights().WithoutCompletion(), ranking.DefaultEngagementWeights(),
		ranking.WithParallelism(cfg.RankParallelism),
		ranking.WithDiversifyK(cfg.DiversifyK),
	)
	if err != nil {
		return nil, fmt.Errorf("build ranker: %w", err)
	}

	repo := postgres.NewFeedRepository(pool)
	feedService := service.NewFeedService(repo, unifiedCache, ranker, cfg.ServiceConfig(), logger)

	dlq := kafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	consumers := []*kafka.Consumer{
		kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.ConsumerGroup,
			Topic:   kafka.TopicFeedInvalidate,
		}, feedService.HandleEvent, dlq, logger),
	}
	// User lifecycle events publish one topic per event type; only deletions
	// matter here, but following the family keeps the handler the single
	// place that decides.
	for _, topic := range kafka.UserEventTopics() {
		consumers = append(consumers, kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.ConsumerGroup,
			Topic:   topic,
		}, feedService.HandleEvent, dlq, logger))
	}

	runner := jobs.NewRunner(unifiedCache, jobs.DefaultRunnerConfig(), logger)
	trendingWindow := time.Duration(cfg.TrendingWindowHours) * time.Hour
	refreshJobs := []jobs.CacheRefreshJob{
		feedService.TrendingJob(trendingWindow,
			time.Duration(cfg.TrendingIntervalMin)*time.Minute, 2*trendingWindow),
		feedService.SuggestedUsersJob(7*24*time.Hour,
			time.Duration(cfg.SuggestedIntervalMin)*time.Minute, time.Hour),
		feedService.HotUserWarmerJob(time.Duration(cfg.WarmerLookbackMinutes)*time.Minute,
			time.Duration(cfg.WarmerIntervalMin)*time.Minute, time.Hour),
	}
	for _, job := range refreshJobs {
		if err := runner.Register(job); err != nil {
			return nil, fmt.Errorf("register job: %w", err)
		}
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", health.PostgresChecker(pool))
	healthHandler.RegisterCritical("redis", health.RedisChecker(redisClient))
	healthHandler.RegisterNonCritical("kafka", health.KafkaChecker(cfg.KafkaBrokers))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.CORSAllowedOrigins
	corsConfig.Environment = cfg.Environment

	router := feedhttp.NewRouter(feedService, healthHandler, logger, corsConfig)

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
		redisClient:    redisClient,
		consumers:      consumers,
		runner:         runner,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server, the invalidation consumers, and the refresh job
// runner, blocking until the context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	go func() {
		a.logger.Info("http server starting", slog.Int("port", a.cfg.HTTPPort))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("consumer: %w", err)
			}
		}()
	}

	a.runner.Start(ctx)

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

// Shutdown stops the HTTP server, consumers, jobs, and connections.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("shutdown http server: %w", err)
	}
	a.runner.Stop()
	for _, c := range a.consumers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close consumer: %w", err)
		}
	}
	if err := a.redisClient.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close redis: %w", err)
	}
	a.pool.Close()
	if err := a.tracerShutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shutdown tracer: %w", err)
	}

	a.logger.Info("feed service stopped")
	return firstErr
}
