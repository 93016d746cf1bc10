// Package repository defines the storage interfaces for the identity service.
package repository

import (
	"context"
	"time"

	"github.com/proerror77/Nova-sub006/pkg/database"
	"github.com/proerror77/Nova-sub006/services/identity/internal/domain"
)

// UserRepository defines storage operations for user aggregates. Write
// operations take an explicit transaction handle so the caller can append the
// matching outbox row in the same transaction.
type UserRepository interface {
	Create(ctx context.Context, tx database.DBTX, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateProfile(ctx context.Context, tx database.DBTX, u *domain.User) error
	UpdatePasswordHash(ctx context.Context, tx database.DBTX, id, hash string, updatedAt time.Time) error
	SetTwoFAEnabled(ctx context.Context, tx database.DBTX, id string, enabled bool, updatedAt time.Time) error
	SoftDelete(ctx context.Context, tx database.DBTX, id string, deletedAt time.Time) error
}
