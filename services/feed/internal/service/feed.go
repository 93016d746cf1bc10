// Package service implements the feed read path, materialization, and
// event-driven invalidation.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/proerror77/Nova-sub006/pkg/cache"
	"github.com/proerror77/Nova-sub006/pkg/cursor"
	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/pkg/kafka"
	"github.com/proerror77/Nova-sub006/services/feed/internal/event"
	"github.com/proerror77/Nova-sub006/services/feed/internal/ranking"
	"github.com/proerror77/Nova-sub006/services/feed/internal/repository"
)

// Config tunes the feed service.
type Config struct {
	// CandidateLimit caps how many posts enter one ranking run.
	CandidateLimit int

	// RecentWindow is how far back the trending arm of the candidate union
	// reaches.
	RecentWindow time.Duration

	// PageTTL is how long a cached feed page lives.
	PageTTL time.Duration

	DefaultPageSize int
	MaxPageSize     int
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		CandidateLimit:  500,
		RecentWindow:    48 * time.Hour,
		PageTTL:         30 * time.Second,
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

// Item is one entry of a served feed page.
type Item struct {
	PostID   string  `json:"post_id"`
	AuthorID string  `json:"author_id"`
	Rank     int64   `json:"rank"`
	Score    float64 `json:"score"`
}

// Page is one served feed page with its continuation cursor.
type Page struct {
	Items      []Item `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// FeedService serves and materializes ranked feeds.
type FeedService struct {
	repo   repository.FeedRepository
	cache  *cache.Cache
	ranker *ranking.Ranker
	budget cursor.ComplexityBudget
	cfg    Config
	logger *slog.Logger
}

// NewFeedService wires the feed service.
func NewFeedService(repo repository.FeedRepository, c *cache.Cache, ranker *ranking.Ranker, cfg Config, logger *slog.Logger) *FeedService {
	return &FeedService{
		repo:   repo,
		cache:  c,
		ranker: ranker,
		budget: cursor.DefaultComplexityBudget(),
		cfg:    cfg,
		logger: logger,
	}
}

// pageKey is the cache key for one (user, afterRank, limit) page.
func pageKey(userID string, afterRank int64, limit int) string {
	return cache.Key("feed", "page", fmt.Sprintf("%s:%d:%d", userID, afterRank, limit))
}

// userPagePattern matches every cached page of one user.
func userPagePattern(userID string) string {
	return cache.Key("feed", "page", userID) + ":*"
}

// GetFeed serves one page of a user's feed. The read path degrades in order:
// cache, then the materialized table, then an empty page. Store failures are
// logged and absorbed; a reader never sees a 500 because ranking is behind.
func (s *FeedService) GetFeed(ctx context.Context, userID, cur string, limit int) (Page, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		return Page{}, apperrors.InvalidInput(fmt.Sprintf("page size must not exceed %d", s.cfg.MaxPageSize))
	}
	if err := s.budget.Check(0, limit); err != nil {
		return Page{}, err
	}

	afterRank, err := cursor.Decode(cur)
	if err != nil {
		return Page{}, err
	}

	key := pageKey(userID, afterRank, limit)
	if page, hit, err := cache.Get[Page](ctx, s.cache, key); err != nil {
		s.logger.WarnContext(ctx, "feed page cache read failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	} else if hit {
		readsTotal.WithLabelValues("cache").Inc()
		return page, nil
	}

	entries, err := s.repo.FetchPage(ctx, userID, afterRank, limit+1)
	if err != nil {
		readsTotal.WithLabelValues("degraded").Inc()
		s.logger.ErrorContext(ctx, "feed store read failed, serving empty page",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return Page{Items: []Item{}}, nil
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	items := make([]Item, len(entries))
	for i, e := range entries {
		items[i] = Item{PostID: e.PostID, AuthorID: e.AuthorID, Rank: e.Rank, Score: e.Score}
	}

	page := Page{Items: items, HasMore: hasMore}
	if hasMore {
		page.NextCursor = cursor.Encode(items[len(items)-1].Rank)
	}

	if err := cache.Set(ctx, s.cache, key, page, s.cfg.PageTTL); err != nil {
		s.logger.WarnContext(ctx, "feed page cache write failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	readsTotal.WithLabelValues("store").Inc()
	return page, nil
}

// Materialize ranks the candidate union for one user and atomically replaces
// their persisted feed, then drops their cached pages. Returns the number of
// entries persisted.
func (s *FeedService) Materialize(ctx context.Context, userID string) (int, error) {
	start := time.Now()

	candidates, err := s.repo.CandidatesForUser(ctx, userID, time.Now().UTC().Add(-s.cfg.RecentWindow), s.cfg.CandidateLimit)
	if err != nil {
		return 0, fmt.Errorf("source candidates for %s: %w", userID, err)
	}

	scored, err := s.ranker.Rank(ctx, userID, candidates)
	if err != nil {
		return 0, fmt.Errorf("rank feed for %s: %w", userID, err)
	}

	if err := s.repo.ReplaceFeed(ctx, userID, scored); err != nil {
		return 0, fmt.Errorf("persist feed for %s: %w", userID, err)
	}

	s.dropUserPages(ctx, userID)

	materializeDuration.Observe(time.Since(start).Seconds())
	materializedEntries.Observe(float64(len(scored)))
	s.logger.DebugContext(ctx, "feed materialized",
		slog.String("user_id", userID),
		slog.Int("candidates", len(candidates)),
		slog.Int("entries", len(scored)),
		slog.Duration("took", time.Since(start)),
	)
	return len(scored), nil
}

// Resequence renumbers one user's persisted feed into dense ranks and drops
// their cached pages.
func (s *FeedService) Resequence(ctx context.Context, userID string) error {
	if err := s.repo.Resequence(ctx, userID); err != nil {
		return err
	}
	s.dropUserPages(ctx, userID)
	return nil
}

// HandleEvent is the kafka handler for feed invalidations and user lifecycle
// events. Unknown event types are ignored so topic evolution does not poison
// the consumer.
func (s *FeedService) HandleEvent(ctx context.Context, env *kafka.Envelope) error {
	switch env.EventType {
	case kafka.EventFeedInvalidate:
		var p event.InvalidatePayload
		if err := env.UnmarshalPayload(&p); err != nil {
			return fmt.Errorf("decode invalidate payload: %w", err)
		}
		return s.handleInvalidate(ctx, p)

	case kafka.EventUserDeleted:
		return s.handleUserDeleted(ctx, env.AggregateID)

	default:
		s.logger.DebugContext(ctx, "ignoring event", slog.String("event_type", env.EventType))
		return nil
	}
}

func (s *FeedService) handleInvalidate(ctx context.Context, p event.InvalidatePayload) error {
	switch {
	case p.UserID != "":
		invalidationsTotal.WithLabelValues("user").Inc()
		if _, err := s.Materialize(ctx, p.UserID); err != nil {
			return err
		}
		return nil

	case p.AuthorID != "":
		invalidationsTotal.WithLabelValues("author").Inc()
		removed, err := s.repo.RemoveAuthor(ctx, p.AuthorID)
		if err != nil {
			return err
		}
		// Ranks keep their gaps until the next materialization; pages are
		// dropped everywhere because any user's feed may have held the posts.
		s.dropAllPages(ctx)
		s.logger.InfoContext(ctx, "author removed from feeds",
			slog.String("author_id", p.AuthorID),
			slog.Int64("entries_removed", removed),
			slog.String("reason", p.Reason),
		)
		return nil

	default:
		return apperrors.InvalidInput("invalidate payload names neither user_id nor author_id")
	}
}

// handleUserDeleted cascades a deleted user out of the feed plane: their own
// feed goes away and their posts leave everyone else's.
func (s *FeedService) handleUserDeleted(ctx context.Context, userID string) error {
	invalidationsTotal.WithLabelValues("user_deleted").Inc()

	if err := s.repo.DeleteUserFeed(ctx, userID); err != nil {
		return err
	}
	removed, err := s.repo.RemoveAuthor(ctx, userID)
	if err != nil {
		return err
	}
	s.dropAllPages(ctx)

	s.logger.InfoContext(ctx, "deleted user cascaded out of feeds",
		slog.String("user_id", userID),
		slog.Int64("entries_removed", removed),
	)
	return nil
}

// dropUserPages drops one user's cached pages. Cache failures degrade to
// shorter staleness, not errors: the pages carry a TTL.
func (s *FeedService) dropUserPages(ctx context.Context, userID string) {
	if _, err := s.cache.ScanDel(ctx, userPagePattern(userID)); err != nil {
		s.logger.WarnContext(ctx, "feed page invalidation failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// dropAllPages drops every cached feed page.
func (s *FeedService) dropAllPages(ctx context.Context) {
	if _, err := s.cache.ScanDel(ctx, cache.Pattern("feed", "page")); err != nil {
		s.logger.WarnContext(ctx, "global feed page invalidation failed",
			slog.String("error", err.Error()),
		)
	}
}
