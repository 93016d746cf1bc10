// Package postgres implements the notification job store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/proerror77/Nova-sub006/pkg/database"
	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/services/notification/internal/domain"
)

// JobRepository is the PostgreSQL push job store.
type JobRepository struct {
	db database.DBTX
}

// NewJobRepository creates a PostgreSQL-backed job repository.
func NewJobRepository(db database.DBTX) *JobRepository {
	return &JobRepository{db: db}
}

// Create persists a new pending job.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO notification_jobs
			(id, device_token, platform, title, body, badge, status, retry_count, max_retries, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		job.ID, job.DeviceToken, job.Platform, job.Title, job.Body, job.Badge,
		job.Status, job.RetryCount, job.MaxRetries, job.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict(fmt.Sprintf("job %s already exists", job.ID))
		}
		return fmt.Errorf("insert notification job: %w", err)
	}
	return nil
}

// GetByID returns one job.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	query := `
		SELECT id, device_token, platform, title, body, badge,
		       status, retry_count, max_retries, COALESCE(last_error, ''), created_at, sent_at
		FROM notification_jobs
		WHERE id = $1`

	var job domain.Job
	err := r.db.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.DeviceToken, &job.Platform, &job.Title, &job.Body, &job.Badge,
		&job.Status, &job.RetryCount, &job.MaxRetries, &job.LastError, &job.CreatedAt, &job.SentAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("job", id)
		}
		return nil, fmt.Errorf("get notification job: %w", err)
	}
	return &job, nil
}

// SelectPending returns pending jobs with retries left, oldest first.
func (r *JobRepository) SelectPending(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `
		SELECT id, device_token, platform, title, body, badge,
		       status, retry_count, max_retries, COALESCE(last_error, ''), created_at, sent_at
		FROM notification_jobs
		WHERE status = 'pending' AND retry_count < max_retries
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		var job domain.Job
		if err := rows.Scan(
			&job.ID, &job.DeviceToken, &job.Platform, &job.Title, &job.Body, &job.Badge,
			&job.Status, &job.RetryCount, &job.MaxRetries, &job.LastError, &job.CreatedAt, &job.SentAt,
		); err != nil {
			return nil, fmt.Errorf("scan pending job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending jobs: %w", err)
	}
	return out, nil
}

// MarkSent transitions a pending job to sent. Terminal statuses never change,
// so the update is conditioned on pending.
func (r *JobRepository) MarkSent(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notification_jobs SET status = 'sent', sent_at = NOW() WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark job sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Conflict(fmt.Sprintf("job %s is not pending", id))
	}
	return nil
}

// RecordFailure adds attempts to the retry count and flips to failed once
// retries are exhausted. The count is capped at max_retries.
func (r *JobRepository) RecordFailure(ctx context.Context, id, lastError string, attempts int) error {
	query := `
		UPDATE notification_jobs
		SET retry_count = LEAST(retry_count + $2, max_retries),
		    last_error = $3,
		    status = CASE WHEN retry_count + $2 >= max_retries THEN 'failed' ELSE 'pending' END
		WHERE id = $1 AND status = 'pending'`

	tag, err := r.db.Exec(ctx, query, id, attempts, lastError)
	if err != nil {
		return fmt.Errorf("record job failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Conflict(fmt.Sprintf("job %s is not pending", id))
	}
	return nil
}

// Cancel transitions a pending job to failed.
func (r *JobRepository) Cancel(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notification_jobs SET status = 'failed', last_error = 'canceled' WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Conflict(fmt.Sprintf("job %s is not pending", id))
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
