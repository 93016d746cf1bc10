// Command backfill rebuilds materialized feeds in bulk: every active user, one
// user, or the followers of one author. With -resequence it renumbers existing
// feeds into dense ranks instead of re-ranking them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/proerror77/Nova-sub006/pkg/cache"
	"github.com/proerror77/Nova-sub006/pkg/database"
	"github.com/proerror77/Nova-sub006/pkg/logger"
	"github.com/proerror77/Nova-sub006/services/feed/internal/config"
	"github.com/proerror77/Nova-sub006/services/feed/internal/ranking"
	"github.com/proerror77/Nova-sub006/services/feed/internal/repository/postgres"
	"github.com/proerror77/Nova-sub006/services/feed/internal/service"
)

func main() {
	var (
		all        = flag.Bool("all", false, "backfill every user with at least one follow")
		user       = flag.String("user", "", "backfill a single user id")
		author     = flag.String("author", "", "backfill the followers of an author id")
		pageSize   = flag.Int("page-size", 100, "user ids fetched per page")
		maxUsers   = flag.Int("max", 0, "stop after this many users (0 = no cap)")
		resequence = flag.Bool("resequence", false, "renumber existing feeds instead of re-ranking")
	)
	flag.Parse()

	targets := 0
	for _, set := range []bool{*all, *user != "", *author != ""} {
		if set {
			targets++
		}
	}
	if targets != 1 {
		fmt.Fprintln(os.Stderr, "exactly one of -all, -user, or -author is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("feed-backfill", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *all, *user, *author, service.BackfillOptions{
		PageSize:   *pageSize,
		Max:        *maxUsers,
		Resequence: *resequence,
	}); err != nil {
		log.Error("backfill failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, all bool, user, author string, opts service.BackfillOptions) error {
	pool, err := database.NewPostgresPoolWithLogger(ctx, cfg.PostgresConfig(), log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisConfig())
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	ranker, err := ranking.NewRanker(cfg.Weights().WithoutCompletion(), ranking.DefaultEngagementWeights(),
		ranking.WithParallelism(cfg.RankParallelism),
		ranking.WithDiversifyK(cfg.DiversifyK),
	)
	if err != nil {
		return fmt.Errorf("build ranker: %w", err)
	}

	repo := postgres.NewFeedRepository(pool)
	feedService := service.NewFeedService(repo, cache.New(redisClient, log), ranker, cfg.ServiceConfig(), log)

	switch {
	case user != "":
		if err := feedService.BackfillUser(ctx, user, opts.Resequence); err != nil {
			return err
		}
		log.Info("backfill done", slog.Int("users", 1))
		return nil

	case author != "":
		n, err := feedService.BackfillAuthor(ctx, author, opts)
		log.Info("backfill done", slog.Int("users", n))
		return err

	default:
		n, err := feedService.BackfillAll(ctx, opts)
		log.Info("backfill done", slog.Int("users", n))
		return err
	}
}
