package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/services/notification/internal/domain"
)

func newTestRepo(t *testing.T) (pgxmock.PgxPoolIface, *JobRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewJobRepository(mock)
}

// --- Create / Get ---

func TestJobRepository_Create(t *testing.T) {
	mock, repo := newTestRepo(t)

	job := &domain.Job{
		ID:          "j-1",
		DeviceToken: "tok-1",
		Platform:    domain.PlatformIOS,
		Title:       "hello",
		Body:        "world",
		Badge:       1,
		Status:      domain.StatusPending,
		MaxRetries:  3,
		CreatedAt:   time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO notification_jobs").
		WithArgs("j-1", "tok-1", domain.PlatformIOS, "hello", "world", 1,
			domain.StatusPending, 0, 3, job.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_GetByID_NotFound(t *testing.T) {
	mock, repo := newTestRepo(t)

	mock.ExpectQuery("SELECT id, device_token").
		WithArgs("j-missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "j-missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- SelectPending ---

func TestJobRepository_SelectPending(t *testing.T) {
	mock, repo := newTestRepo(t)

	created := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"id", "device_token", "platform", "title", "body", "badge",
		"status", "retry_count", "max_retries", "coalesce", "created_at", "sent_at",
	}).
		AddRow("j-1", "tok-1", domain.PlatformIOS, "a", "b", 0,
			domain.StatusPending, 0, 3, "", created, (*time.Time)(nil)).
		AddRow("j-2", "tok-2", domain.PlatformAndroid, "c", "d", 2,
			domain.StatusPending, 1, 3, "gateway timeout", created.Add(time.Minute), (*time.Time)(nil))

	mock.ExpectQuery("SELECT id, device_token").
		WithArgs(50).
		WillReturnRows(rows)

	jobs, err := repo.SelectPending(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j-1", jobs[0].ID)
	assert.Equal(t, "gateway timeout", jobs[1].LastError)
	assert.Equal(t, 1, jobs[1].RetryCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Status transitions ---

func TestJobRepository_MarkSent(t *testing.T) {
	mock, repo := newTestRepo(t)

	mock.ExpectExec("UPDATE notification_jobs SET status = 'sent'").
		WithArgs("j-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.MarkSent(context.Background(), "j-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_MarkSent_TerminalJobUntouched(t *testing.T) {
	mock, repo := newTestRepo(t)

	mock.ExpectExec("UPDATE notification_jobs SET status = 'sent'").
		WithArgs("j-done").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.MarkSent(context.Background(), "j-done")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_RecordFailure(t *testing.T) {
	mock, repo := newTestRepo(t)

	mock.ExpectExec("UPDATE notification_jobs").
		WithArgs("j-1", 2, "gateway timeout").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.RecordFailure(context.Background(), "j-1", "gateway timeout", 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_Cancel_OnlyPending(t *testing.T) {
	mock, repo := newTestRepo(t)

	mock.ExpectExec("UPDATE notification_jobs SET status = 'failed'").
		WithArgs("j-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE notification_jobs SET status = 'failed'").
		WithArgs("j-sent").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.Cancel(context.Background(), "j-1"))

	err := repo.Cancel(context.Background(), "j-sent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}
