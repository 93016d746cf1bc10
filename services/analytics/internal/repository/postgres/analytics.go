// Package postgres implements the analytics store. Every write is idempotent:
// CDC rows upsert on their primary key and event rows ignore duplicates, so
// redelivered messages converge instead of double-counting.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/proerror77/Nova-sub006/pkg/database"
)

// PostRow is the analytics projection of a post.
type PostRow struct {
	PostID       string
	AuthorID     string
	CreatedAt    time.Time
	LikeCount    int64
	CommentCount int64
	ShareCount   int64
	Deleted      bool
}

// FollowRow is the analytics projection of a follow edge.
type FollowRow struct {
	FollowerID string
	FolloweeID string
	CreatedAt  time.Time
	Deleted    bool
}

// CommentRow is the analytics projection of a comment.
type CommentRow struct {
	CommentID string
	PostID    string
	AuthorID  string
	CreatedAt time.Time
	Deleted   bool
}

// LikeRow is the analytics projection of a like.
type LikeRow struct {
	PostID    string
	UserID    string
	CreatedAt time.Time
	Deleted   bool
}

// EventRow is one application event landed by the batching consumer.
type EventRow struct {
	EventID     string
	EventType   string
	AggregateID string
	OccurredAt  time.Time
	Payload     json.RawMessage
}

// AnalyticsRepository persists CDC projections, application events, and
// consumer offset checkpoints.
type AnalyticsRepository struct {
	db database.DBTX
}

// NewAnalyticsRepository creates a PostgreSQL-backed analytics repository.
func NewAnalyticsRepository(db database.DBTX) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// UpsertPost merges a post projection on its primary key.
func (r *AnalyticsRepository) UpsertPost(ctx context.Context, row PostRow) error {
	query := `
		INSERT INTO analytics_posts (post_id, author_id, created_at, like_count, comment_count, share_count, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (post_id) DO UPDATE SET
			author_id = EXCLUDED.author_id,
			like_count = EXCLUDED.like_count,
			comment_count = EXCLUDED.comment_count,
			share_count = EXCLUDED.share_count,
			deleted = EXCLUDED.deleted`

	_, err := r.db.Exec(ctx, query,
		row.PostID, row.AuthorID, row.CreatedAt,
		row.LikeCount, row.CommentCount, row.ShareCount, row.Deleted,
	)
	if err != nil {
		return fmt.Errorf("upsert analytics post: %w", err)
	}
	return nil
}

// UpsertFollow merges a follow edge on its composite key.
func (r *AnalyticsRepository) UpsertFollow(ctx context.Context, row FollowRow) error {
	query := `
		INSERT INTO analytics_follows (follower_id, followee_id, created_at, deleted)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (follower_id, followee_id) DO UPDATE SET
			deleted = EXCLUDED.deleted`

	_, err := r.db.Exec(ctx, query, row.FollowerID, row.FolloweeID, row.CreatedAt, row.Deleted)
	if err != nil {
		return fmt.Errorf("upsert analytics follow: %w", err)
	}
	return nil
}

// UpsertComment merges a comment projection on its primary key.
func (r *AnalyticsRepository) UpsertComment(ctx context.Context, row CommentRow) error {
	query := `
		INSERT INTO analytics_comments (comment_id, post_id, author_id, created_at, deleted)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (comment_id) DO UPDATE SET
			deleted = EXCLUDED.deleted`

	_, err := r.db.Exec(ctx, query, row.CommentID, row.PostID, row.AuthorID, row.CreatedAt, row.Deleted)
	if err != nil {
		return fmt.Errorf("upsert analytics comment: %w", err)
	}
	return nil
}

// UpsertLike merges a like on its composite key.
func (r *AnalyticsRepository) UpsertLike(ctx context.Context, row LikeRow) error {
	query := `
		INSERT INTO analytics_likes (post_id, user_id, created_at, deleted)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (post_id, user_id) DO UPDATE SET
			deleted = EXCLUDED.deleted`

	_, err := r.db.Exec(ctx, query, row.PostID, row.UserID, row.CreatedAt, row.Deleted)
	if err != nil {
		return fmt.Errorf("upsert analytics like: %w", err)
	}
	return nil
}

// InsertEventsBatch lands a batch of application events in one round trip.
// Duplicate event ids are ignored so redelivered batches are safe.
func (r *AnalyticsRepository) InsertEventsBatch(ctx context.Context, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO analytics_events (event_id, event_type, aggregate_id, occurred_at, payload) VALUES `)
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 5
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5)
		args = append(args, row.EventID, row.EventType, row.AggregateID, row.OccurredAt, row.Payload)
	}
	sb.WriteString(` ON CONFLICT (event_id) DO NOTHING`)

	if _, err := r.db.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert events batch: %w", err)
	}
	return nil
}

// GetOffset returns the checkpointed offset for a topic partition, or -1 when
// no checkpoint exists.
func (r *AnalyticsRepository) GetOffset(ctx context.Context, topic string, partition int) (int64, error) {
	var offset int64
	err := r.db.QueryRow(ctx,
		`SELECT last_offset FROM cdc_offsets WHERE topic = $1 AND partition = $2`,
		topic, partition,
	).Scan(&offset)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return -1, nil
		}
		return -1, fmt.Errorf("get offset checkpoint: %w", err)
	}
	return offset, nil
}

// SaveOffset persists an offset checkpoint. The guard keeps checkpoints
// monotonic even if a stale worker writes late.
func (r *AnalyticsRepository) SaveOffset(ctx context.Context, topic string, partition int, offset int64) error {
	query := `
		INSERT INTO cdc_offsets (topic, partition, last_offset, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (topic, partition) DO UPDATE SET
			last_offset = EXCLUDED.last_offset,
			updated_at = EXCLUDED.updated_at
		WHERE cdc_offsets.last_offset < EXCLUDED.last_offset`

	if _, err := r.db.Exec(ctx, query, topic, partition, offset, time.Now().UTC()); err != nil {
		return fmt.Errorf("save offset checkpoint: %w", err)
	}
	return nil
}
