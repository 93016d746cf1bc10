// Package postgres implements the feed store: candidate sourcing over the CDC
// projections and the per-user materialized ranked_feeds table.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/proerror77/Nova-sub006/pkg/database"
	"github.com/proerror77/Nova-sub006/services/feed/internal/ranking"
)

// FeedEntry is one row of a user's materialized feed.
type FeedEntry struct {
	UserID         string
	PostID         string
	AuthorID       string
	Rank           int64
	Score          float64
	MaterializedAt time.Time
}

// TrendingPost is a post ordered by weighted interaction heat inside a window.
type TrendingPost struct {
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id"`
	Heat     int64  `json:"heat"`
}

// SuggestedUser is an author ordered by recent follower growth.
type SuggestedUser struct {
	UserID          string `json:"user_id"`
	RecentFollowers int64  `json:"recent_followers"`
}

// FeedRepository persists materialized feeds and sources ranking candidates.
type FeedRepository struct {
	db database.DBTX
}

// NewFeedRepository creates a PostgreSQL-backed feed repository.
func NewFeedRepository(db database.DBTX) *FeedRepository {
	return &FeedRepository{db: db}
}

// CandidatesForUser returns the candidate union for one user: posts by
// followed authors, posts by authors the user interacted with, and recent
// posts, deduplicated by post id in the query itself. The user's own posts are
// excluded.
//
// TODO: populate Completion once watch-progress events are aggregated.
func (r *FeedRepository) CandidatesForUser(ctx context.Context, userID string, recentSince time.Time, limit int) ([]ranking.Candidate, error) {
	query := `
		WITH my_follows AS (
			SELECT followee_id
			FROM analytics_follows
			WHERE follower_id = $1 AND NOT deleted
		), my_interactions AS (
			SELECT author_id, COUNT(*) AS n
			FROM (
				SELECT p.author_id
				FROM analytics_likes l
				JOIN analytics_posts p ON p.post_id = l.post_id
				WHERE l.user_id = $1 AND NOT l.deleted
				UNION ALL
				SELECT p.author_id
				FROM analytics_comments c
				JOIN analytics_posts p ON p.post_id = c.post_id
				WHERE c.author_id = $1 AND NOT c.deleted
			) i
			GROUP BY author_id
		)
		SELECT p.post_id, p.author_id, p.created_at,
			p.like_count, p.comment_count, p.share_count,
			(f.followee_id IS NOT NULL) AS followed,
			COALESCE(mi.n, 0) AS interactions
		FROM analytics_posts p
		LEFT JOIN my_follows f ON f.followee_id = p.author_id
		LEFT JOIN my_interactions mi ON mi.author_id = p.author_id
		WHERE NOT p.deleted
			AND p.author_id <> $1
			AND (f.followee_id IS NOT NULL OR mi.author_id IS NOT NULL OR p.created_at >= $2)
		ORDER BY p.created_at DESC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, userID, recentSince, limit)
	if err != nil {
		return nil, fmt.Errorf("query feed candidates: %w", err)
	}
	defer rows.Close()

	var out []ranking.Candidate
	for rows.Next() {
		var c ranking.Candidate
		if err := rows.Scan(
			&c.PostID, &c.AuthorID, &c.CreatedAt,
			&c.Likes, &c.Comments, &c.Shares,
			&c.Followed, &c.Interactions,
		); err != nil {
			return nil, fmt.Errorf("scan feed candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed candidates: %w", err)
	}
	return out, nil
}

// ReplaceFeed atomically swaps a user's materialized feed: the old rows are
// deleted and the new ranked entries inserted in one transaction, so readers
// never observe a half-written feed.
func (r *FeedRepository) ReplaceFeed(ctx context.Context, userID string, entries []ranking.Scored) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace feed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM ranked_feeds WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear ranked feed: %w", err)
	}

	if len(entries) > 0 {
		var (
			sb   strings.Builder
			args []any
		)
		now := time.Now().UTC()
		sb.WriteString(`INSERT INTO ranked_feeds (user_id, post_id, author_id, rank, score, materialized_at) VALUES `)
		for i, e := range entries {
			if i > 0 {
				sb.WriteString(", ")
			}
			base := i * 6
			fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6)
			args = append(args, userID, e.PostID, e.AuthorID, e.Rank, e.Score, now)
		}
		if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("insert ranked feed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace feed: %w", err)
	}
	return nil
}

// FetchPage reads one page of a user's materialized feed after the given rank,
// ordered by rank ascending.
func (r *FeedRepository) FetchPage(ctx context.Context, userID string, afterRank int64, limit int) ([]FeedEntry, error) {
	query := `
		SELECT user_id, post_id, author_id, rank, score, materialized_at
		FROM ranked_feeds
		WHERE user_id = $1 AND rank > $2
		ORDER BY rank
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, userID, afterRank, limit)
	if err != nil {
		return nil, fmt.Errorf("query feed page: %w", err)
	}
	defer rows.Close()

	var out []FeedEntry
	for rows.Next() {
		var e FeedEntry
		if err := rows.Scan(&e.UserID, &e.PostID, &e.AuthorID, &e.Rank, &e.Score, &e.MaterializedAt); err != nil {
			return nil, fmt.Errorf("scan feed entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed page: %w", err)
	}
	return out, nil
}

// DeleteUserFeed drops a user's materialized feed entirely.
func (r *FeedRepository) DeleteUserFeed(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM ranked_feeds WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete user feed: %w", err)
	}
	return nil
}

// RemoveAuthor removes every post by the given author from all materialized
// feeds and reports how many rows went away. Used when an author is deleted.
func (r *FeedRepository) RemoveAuthor(ctx context.Context, authorID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM ranked_feeds WHERE author_id = $1`, authorID)
	if err != nil {
		return 0, fmt.Errorf("remove author from feeds: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Resequence renumbers one user's feed into dense 1-based ranks, closing the
// gaps left by targeted deletions.
func (r *FeedRepository) Resequence(ctx context.Context, userID string) error {
	query := `
		WITH ordered AS (
			SELECT post_id, ROW_NUMBER() OVER (ORDER BY rank) AS new_rank
			FROM ranked_feeds
			WHERE user_id = $1
		)
		UPDATE ranked_feeds rf
		SET rank = o.new_rank
		FROM ordered o
		WHERE rf.user_id = $1 AND rf.post_id = o.post_id`

	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("resequence feed: %w", err)
	}
	return nil
}

// TrendingPosts returns posts created since the cutoff ordered by weighted
// interaction heat.
func (r *FeedRepository) TrendingPosts(ctx context.Context, since time.Time, limit int) ([]TrendingPost, error) {
	query := `
		SELECT post_id, author_id,
			like_count + 2 * comment_count + 3 * share_count AS heat
		FROM analytics_posts
		WHERE NOT deleted AND created_at >= $1
		ORDER BY heat DESC, post_id
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query trending posts: %w", err)
	}
	defer rows.Close()

	var out []TrendingPost
	for rows.Next() {
		var p TrendingPost
		if err := rows.Scan(&p.PostID, &p.AuthorID, &p.Heat); err != nil {
			return nil, fmt.Errorf("scan trending post: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trending posts: %w", err)
	}
	return out, nil
}

// SuggestedUsers returns authors ordered by follower growth since the cutoff.
func (r *FeedRepository) SuggestedUsers(ctx context.Context, since time.Time, limit int) ([]SuggestedUser, error) {
	query := `
		SELECT followee_id, COUNT(*) AS recent_followers
		FROM analytics_follows
		WHERE NOT deleted AND created_at >= $1
		GROUP BY followee_id
		ORDER BY recent_followers DESC, followee_id
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query suggested users: %w", err)
	}
	defer rows.Close()

	var out []SuggestedUser
	for rows.Next() {
		var u SuggestedUser
		if err := rows.Scan(&u.UserID, &u.RecentFollowers); err != nil {
			return nil, fmt.Errorf("scan suggested user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggested users: %w", err)
	}
	return out, nil
}

// HotUserIDs returns users who liked or commented since the cutoff, most
// active first. The warmer re-materializes their feeds ahead of reads.
func (r *FeedRepository) HotUserIDs(ctx context.Context, since time.Time, limit int) ([]string, error) {
	query := `
		SELECT user_id
		FROM (
			SELECT user_id, COUNT(*) AS activity
			FROM (
				SELECT user_id FROM analytics_likes WHERE NOT deleted AND created_at >= $1
				UNION ALL
				SELECT author_id AS user_id FROM analytics_comments WHERE NOT deleted AND created_at >= $1
			) a
			GROUP BY user_id
		) ranked
		ORDER BY activity DESC, user_id
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query hot users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan hot user: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hot users: %w", err)
	}
	return out, nil
}

// FollowerIDs pages over the followers of one author by keyset, ordered by
// follower id.
func (r *FeedRepository) FollowerIDs(ctx context.Context, authorID, afterID string, limit int) ([]string, error) {
	query := `
		SELECT follower_id
		FROM analytics_follows
		WHERE followee_id = $1 AND NOT deleted AND follower_id > $2
		ORDER BY follower_id
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, authorID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query follower ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan follower id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate follower ids: %w", err)
	}
	return out, nil
}

// ActiveUserIDs pages over every user who follows at least one author, by
// keyset. The full backfill walks feeds through this.
func (r *FeedRepository) ActiveUserIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	query := `
		SELECT DISTINCT follower_id
		FROM analytics_follows
		WHERE NOT deleted AND follower_id > $1
		ORDER BY follower_id
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query active user ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan active user id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active user ids: %w", err)
	}
	return out, nil
}
