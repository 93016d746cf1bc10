package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/domain"
)

func newTestRepo(t *testing.T) (pgxmock.PgxPoolIface, *MessageRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewMessageRepository(mock)
}

// --- Insert ---

func TestMessageRepository_Insert(t *testing.T) {
	mock, repo := newTestRepo(t)

	msg := &domain.Message{
		ID:             "m-1",
		ConversationID: "c-1",
		SenderID:       "u-1",
		Body:           "hello",
		CreatedAt:      time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO messages").
		WithArgs(msg.ID, msg.ConversationID, msg.SenderID, msg.Body, msg.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Insert(context.Background(), msg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_Insert_DuplicateIDConflicts(t *testing.T) {
	mock, repo := newTestRepo(t)

	mock.ExpectExec("INSERT INTO messages").
		WithArgs("m-1", "c-1", "u-1", "hello", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Insert(context.Background(), &domain.Message{
		ID: "m-1", ConversationID: "c-1", SenderID: "u-1", Body: "hello",
		CreatedAt: time.Now(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- History ---

func TestMessageRepository_History_KeysetBeforeID(t *testing.T) {
	mock, repo := newTestRepo(t)

	created := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "conversation_id", "sender_id", "body", "created_at"}).
		AddRow("m-2", "c-1", "u-1", "second", created).
		AddRow("m-1", "c-1", "u-2", "first", created.Add(-time.Minute))

	mock.ExpectQuery("SELECT id, conversation_id, sender_id, body, created_at").
		WithArgs("c-1", "m-3", 50).
		WillReturnRows(rows)

	msgs, err := repo.History(context.Background(), "c-1", "m-3", 50)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m-2", msgs[0].ID)
	assert.Equal(t, "second", msgs[0].Body)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_History_Empty(t *testing.T) {
	mock, repo := newTestRepo(t)

	mock.ExpectQuery("SELECT id, conversation_id, sender_id, body, created_at").
		WithArgs("c-1", "", 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "conversation_id", "sender_id", "body", "created_at"}))

	msgs, err := repo.History(context.Background(), "c-1", "", 50)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- IsMember ---

func TestMessageRepository_IsMember(t *testing.T) {
	mock, repo := newTestRepo(t)

	mock.ExpectQuery("SELECT 1 FROM conversation_members").
		WithArgs("c-1", "u-1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	member, err := repo.IsMember(context.Background(), "c-1", "u-1")
	require.NoError(t, err)
	assert.True(t, member)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_IsMember_NotFound(t *testing.T) {
	mock, repo := newTestRepo(t)

	mock.ExpectQuery("SELECT 1 FROM conversation_members").
		WithArgs("c-1", "u-stranger").
		WillReturnError(pgx.ErrNoRows)

	member, err := repo.IsMember(context.Background(), "c-1", "u-stranger")
	require.NoError(t, err)
	assert.False(t, member)
	assert.NoError(t, mock.ExpectationsWereMet())
}
