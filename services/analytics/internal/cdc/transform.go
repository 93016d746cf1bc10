package cdc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/pkg/kafka"
	"github.com/proerror77/Nova-sub006/services/analytics/internal/repository/postgres"
)

// Sink is the store side of the CDC pipeline. *postgres.AnalyticsRepository
// satisfies it.
type Sink interface {
	UpsertPost(ctx context.Context, row postgres.PostRow) error
	UpsertFollow(ctx context.Context, row postgres.FollowRow) error
	UpsertComment(ctx context.Context, row postgres.CommentRow) error
	UpsertLike(ctx context.Context, row postgres.LikeRow) error
}

// Source table names the transformer understands.
const (
	TablePosts    = "posts"
	TableFollows  = "follows"
	TableComments = "comments"
	TableLikes    = "likes"
)

// Wire shapes of the source rows inside CDC before/after images.
type postImage struct {
	ID           string `json:"id"`
	AuthorID     string `json:"author_id"`
	CreatedAtMS  int64  `json:"created_at"`
	LikeCount    int64  `json:"like_count"`
	CommentCount int64  `json:"comment_count"`
	ShareCount   int64  `json:"share_count"`
}

type followImage struct {
	FollowerID  string `json:"follower_id"`
	FolloweeID  string `json:"followee_id"`
	CreatedAtMS int64  `json:"created_at"`
}

type commentImage struct {
	ID          string `json:"id"`
	PostID      string `json:"post_id"`
	AuthorID    string `json:"author_id"`
	CreatedAtMS int64  `json:"created_at"`
}

type likeImage struct {
	PostID      string `json:"post_id"`
	UserID      string `json:"user_id"`
	CreatedAtMS int64  `json:"created_at"`
}

// Transform turns a validated record into a store write. It returns the
// primary key used for deduplication and a closure that performs the
// idempotent upsert. Unknown tables are invalid input and get dead-lettered.
func Transform(rec *Record, sink Sink) (pk string, apply func(ctx context.Context) error, err error) {
	state := rec.State()
	deleted := rec.Op == OpDelete

	switch rec.Source.Table {
	case TablePosts:
		var img postImage
		if err := json.Unmarshal(state, &img); err != nil {
			return "", nil, apperrors.InvalidInput(fmt.Sprintf("decode posts image: %v", err))
		}
		if img.ID == "" || img.AuthorID == "" {
			return "", nil, apperrors.InvalidInput("posts image missing id or author_id")
		}
		row := postgres.PostRow{
			PostID:       img.ID,
			AuthorID:     img.AuthorID,
			CreatedAt:    time.UnixMilli(img.CreatedAtMS).UTC(),
			LikeCount:    img.LikeCount,
			CommentCount: img.CommentCount,
			ShareCount:   img.ShareCount,
			Deleted:      deleted,
		}
		return img.ID, func(ctx context.Context) error { return sink.UpsertPost(ctx, row) }, nil

	case TableFollows:
		var img followImage
		if err := json.Unmarshal(state, &img); err != nil {
			return "", nil, apperrors.InvalidInput(fmt.Sprintf("decode follows image: %v", err))
		}
		if img.FollowerID == "" || img.FolloweeID == "" {
			return "", nil, apperrors.InvalidInput("follows image missing follower_id or followee_id")
		}
		row := postgres.FollowRow{
			FollowerID: img.FollowerID,
			FolloweeID: img.FolloweeID,
			CreatedAt:  time.UnixMilli(img.CreatedAtMS).UTC(),
			Deleted:    deleted,
		}
		pk := kafka.CompositeKey(img.FollowerID, img.FolloweeID)
		return pk, func(ctx context.Context) error { return sink.UpsertFollow(ctx, row) }, nil

	case TableComments:
		var img commentImage
		if err := json.Unmarshal(state, &img); err != nil {
			return "", nil, apperrors.InvalidInput(fmt.Sprintf("decode comments image: %v", err))
		}
		if img.ID == "" || img.PostID == "" {
			return "", nil, apperrors.InvalidInput("comments image missing id or post_id")
		}
		row := postgres.CommentRow{
			CommentID: img.ID,
			PostID:    img.PostID,
			AuthorID:  img.AuthorID,
			CreatedAt: time.UnixMilli(img.CreatedAtMS).UTC(),
			Deleted:   deleted,
		}
		return img.ID, func(ctx context.Context) error { return sink.UpsertComment(ctx, row) }, nil

	case TableLikes:
		var img likeImage
		if err := json.Unmarshal(state, &img); err != nil {
			return "", nil, apperrors.InvalidInput(fmt.Sprintf("decode likes image: %v", err))
		}
		if img.PostID == "" || img.UserID == "" {
			return "", nil, apperrors.InvalidInput("likes image missing post_id or user_id")
		}
		row := postgres.LikeRow{
			PostID:    img.PostID,
			UserID:    img.UserID,
			CreatedAt: time.UnixMilli(img.CreatedAtMS).UTC(),
			Deleted:   deleted,
		}
		pk := kafka.CompositeKey(img.PostID, img.UserID)
		return pk, func(ctx context.Context) error { return sink.UpsertLike(ctx, row) }, nil

	default:
		return "", nil, apperrors.InvalidInput(fmt.Sprintf("unknown cdc table %q", rec.Source.Table))
	}
}
