// Package repository defines the persistence contract of the feed service.
package repository

import (
	"context"
	"time"

	"github.com/proerror77/Nova-sub006/services/feed/internal/ranking"
	"github.com/proerror77/Nova-sub006/services/feed/internal/repository/postgres"
)

// FeedRepository sources ranking candidates from the CDC projections and
// persists materialized feeds.
type FeedRepository interface {
	CandidatesForUser(ctx context.Context, userID string, recentSince time.Time, limit int) ([]ranking.Candidate, error)
	ReplaceFeed(ctx context.Context, userID string, entries []ranking.Scored) error
	FetchPage(ctx context.Context, userID string, afterRank int64, limit int) ([]postgres.FeedEntry, error)
	DeleteUserFeed(ctx context.Context, userID string) error
	RemoveAuthor(ctx context.Context, authorID string) (int64, error)
	Resequence(ctx context.Context, userID string) error

	TrendingPosts(ctx context.Context, since time.Time, limit int) ([]postgres.TrendingPost, error)
	SuggestedUsers(ctx context.Context, since time.Time, limit int) ([]postgres.SuggestedUser, error)
	HotUserIDs(ctx context.Context, since time.Time, limit int) ([]string, error)

	FollowerIDs(ctx context.Context, authorID, afterID string, limit int) ([]string, error)
	ActiveUserIDs(ctx context.Context, afterID string, limit int) ([]string, error)
}
