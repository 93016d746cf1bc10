// Package repository defines the notification store contract.
package repository

import (
	"context"

	"github.com/proerror77/Nova-sub006/services/notification/internal/domain"
)

// JobRepository is the durable push job store.
type JobRepository interface {
	// Create persists a new pending job.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID returns one job.
	GetByID(ctx context.Context, id string) (*domain.Job, error)

	// SelectPending returns pending jobs that still have retries left, oldest
	// first.
	SelectPending(ctx context.Context, limit int) ([]domain.Job, error)

	// MarkSent transitions a pending job to sent. A job that is no longer
	// pending is left untouched and reported as a conflict.
	MarkSent(ctx context.Context, id string) error

	// RecordFailure adds attempts to the retry count, stores the last error,
	// and transitions to failed once retries are exhausted.
	RecordFailure(ctx context.Context, id, lastError string, attempts int) error

	// Cancel transitions a pending job to failed. A job that is no longer
	// pending is left untouched and reported as a conflict.
	Cancel(ctx context.Context, id string) error
}
