package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/proerror77/Nova-sub006/pkg/cache"
	"github.com/proerror77/Nova-sub006/pkg/jobs"
)

const (
	trendingLimit  = 50
	suggestedLimit = 25
	hotUserLimit   = 100
)

// windowLabel renders a duration as a compact cache key segment, e.g. "24h".
func windowLabel(window time.Duration) string {
	if window < time.Hour {
		return fmt.Sprintf("%dm", int(window.Minutes()))
	}
	return fmt.Sprintf("%dh", int(window.Hours()))
}

// TrendingKey is the cache key for the trending posts of a window.
func TrendingKey(window time.Duration) string {
	return cache.Key("feed", "trending", windowLabel(window))
}

// SuggestedUsersKey is the cache key for the global suggested-users list.
func SuggestedUsersKey() string {
	return cache.Key("feed", "suggested", "global")
}

// TrendingJob recomputes the trending posts of one window.
func (s *FeedService) TrendingJob(window, interval, ttl time.Duration) jobs.CacheRefreshJob {
	return jobs.CacheRefreshJob{
		Name:     "trending-" + windowLabel(window),
		Key:      TrendingKey(window),
		Interval: interval,
		TTL:      ttl,
		Fetch: func(ctx context.Context) ([]byte, error) {
			posts, err := s.repo.TrendingPosts(ctx, time.Now().UTC().Add(-window), trendingLimit)
			if err != nil {
				return nil, err
			}
			return json.Marshal(posts)
		},
	}
}

// SuggestedUsersJob recomputes the global suggested-users list from recent
// follower growth.
func (s *FeedService) SuggestedUsersJob(window, interval, ttl time.Duration) jobs.CacheRefreshJob {
	return jobs.CacheRefreshJob{
		Name:     "suggested-users",
		Key:      SuggestedUsersKey(),
		Interval: interval,
		TTL:      ttl,
		Fetch: func(ctx context.Context) ([]byte, error) {
			users, err := s.repo.SuggestedUsers(ctx, time.Now().UTC().Add(-window), suggestedLimit)
			if err != nil {
				return nil, err
			}
			return json.Marshal(users)
		},
	}
}

// hotWarmReport is the payload the warmer job leaves behind, mostly for
// operators poking at the cache.
type hotWarmReport struct {
	WarmedAt time.Time `json:"warmed_at"`
	Users    []string  `json:"users"`
	Failed   int       `json:"failed"`
}

// HotUserWarmerJob re-materializes the feeds of recently active users so their
// next read hits a warm table. Individual failures are logged and skipped; the
// job only fails when the hot-user query itself does.
func (s *FeedService) HotUserWarmerJob(window, interval, ttl time.Duration) jobs.CacheRefreshJob {
	return jobs.CacheRefreshJob{
		Name:     "hot-user-warmer",
		Key:      cache.Key("feed", "warmed", "hot-users"),
		Interval: interval,
		TTL:      ttl,
		Fetch: func(ctx context.Context) ([]byte, error) {
			ids, err := s.repo.HotUserIDs(ctx, time.Now().UTC().Add(-window), hotUserLimit)
			if err != nil {
				return nil, err
			}

			report := hotWarmReport{WarmedAt: time.Now().UTC(), Users: make([]string, 0, len(ids))}
			for _, id := range ids {
				if _, err := s.Materialize(ctx, id); err != nil {
					report.Failed++
					s.logger.WarnContext(ctx, "hot user warm failed",
						slog.String("user_id", id),
						slog.String("error", err.Error()),
					)
					continue
				}
				report.Users = append(report.Users, id)
			}
			return json.Marshal(report)
		},
	}
}
