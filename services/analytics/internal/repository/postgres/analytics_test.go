package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proerror77/Nova-sub006/pkg/database"
)

func newTestRepo(t *testing.T) (*AnalyticsRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewAnalyticsRepository(mock), mock
}

// --- Upserts ---

func TestUpsertPost(t *testing.T) {
	repo, mock := newTestRepo(t)
	row := PostRow{
		PostID:    "p-1",
		AuthorID:  "u-1",
		CreatedAt: time.Now().UTC(),
		LikeCount: 7,
	}

	mock.ExpectExec("INSERT INTO analytics_posts").
		WithArgs(row.PostID, row.AuthorID, row.CreatedAt, row.LikeCount, row.CommentCount, row.ShareCount, row.Deleted).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.UpsertPost(context.Background(), row))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertFollow(t *testing.T) {
	repo, mock := newTestRepo(t)
	row := FollowRow{FollowerID: "u-1", FolloweeID: "u-2", CreatedAt: time.Now().UTC(), Deleted: true}

	mock.ExpectExec("INSERT INTO analytics_follows").
		WithArgs(row.FollowerID, row.FolloweeID, row.CreatedAt, row.Deleted).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.UpsertFollow(context.Background(), row))
}

func TestUpsertLike(t *testing.T) {
	repo, mock := newTestRepo(t)
	row := LikeRow{PostID: "p-1", UserID: "u-1", CreatedAt: time.Now().UTC()}

	mock.ExpectExec("INSERT INTO analytics_likes").
		WithArgs(row.PostID, row.UserID, row.CreatedAt, row.Deleted).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.UpsertLike(context.Background(), row))
}

// --- Events batch ---

func TestInsertEventsBatch(t *testing.T) {
	repo, mock := newTestRepo(t)
	now := time.Now().UTC()
	rows := []EventRow{
		{EventID: "e-1", EventType: "post.created", AggregateID: "p-1", OccurredAt: now, Payload: json.RawMessage(`{}`)},
		{EventID: "e-2", EventType: "like.added", AggregateID: "p-1", OccurredAt: now, Payload: json.RawMessage(`{}`)},
	}

	mock.ExpectExec("INSERT INTO analytics_events").
		WithArgs(
			"e-1", "post.created", "p-1", now, json.RawMessage(`{}`),
			"e-2", "like.added", "p-1", now, json.RawMessage(`{}`),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	require.NoError(t, repo.InsertEventsBatch(context.Background(), rows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEventsBatch_Empty(t *testing.T) {
	repo, mock := newTestRepo(t)
	require.NoError(t, repo.InsertEventsBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Offset checkpoints ---

func TestSaveOffset_MonotonicGuard(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("INSERT INTO cdc_offsets").
		WithArgs("cdc.posts", 2, int64(42), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.SaveOffset(context.Background(), "cdc.posts", 2, 42))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOffset(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT last_offset FROM cdc_offsets").
		WithArgs("cdc.posts", 0).
		WillReturnRows(pgxmock.NewRows([]string{"last_offset"}).AddRow(int64(99)))

	offset, err := repo.GetOffset(context.Background(), "cdc.posts", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(99), offset)
}

func TestGetOffset_NoCheckpoint(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT last_offset FROM cdc_offsets").
		WithArgs("cdc.posts", 0).
		WillReturnRows(pgxmock.NewRows([]string{"last_offset"}))

	offset, err := repo.GetOffset(context.Background(), "cdc.posts", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), offset)
}
