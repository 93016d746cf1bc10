package service

import (
	"context"
	"time"

	"github.com/proerror77/Nova-sub006/pkg/cache"
	"github.com/proerror77/Nova-sub006/services/feed/internal/repository/postgres"
)

const (
	trendingTTL  = 10 * time.Minute
	suggestedTTL = 30 * time.Minute
)

// Trending serves the trending posts of a window, read-through: the refresh
// job usually keeps the entry warm, and a cold read computes and stores it.
func (s *FeedService) Trending(ctx context.Context, window time.Duration) ([]postgres.TrendingPost, error) {
	posts, _, err := cache.GetOrCompute(ctx, s.cache, TrendingKey(window), trendingTTL,
		func(ctx context.Context) ([]postgres.TrendingPost, error) {
			return s.repo.TrendingPosts(ctx, time.Now().UTC().Add(-window), trendingLimit)
		})
	return posts, err
}

// SuggestedUsers serves the global suggested-users list, read-through like
// Trending.
func (s *FeedService) SuggestedUsers(ctx context.Context, window time.Duration) ([]postgres.SuggestedUser, error) {
	users, _, err := cache.GetOrCompute(ctx, s.cache, SuggestedUsersKey(), suggestedTTL,
		func(ctx context.Context) ([]postgres.SuggestedUser, error) {
			return s.repo.SuggestedUsers(ctx, time.Now().UTC().Add(-window), suggestedLimit)
		})
	return users, err
}
