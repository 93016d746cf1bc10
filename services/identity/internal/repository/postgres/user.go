// Package postgres implements the identity repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/proerror77/Nova-sub006/pkg/database"
	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/services/identity/internal/domain"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
// Reads go through the pool; writes take the caller's transaction so the
// outbox append commits atomically with the aggregate change.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, display_name, bio, avatar_url, password_hash, two_fa_enabled, created_at, updated_at, deleted_at`

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, tx database.DBTX, u *domain.User) error {
	query := `
		INSERT INTO users (id, username, email, display_name, bio, avatar_url, password_hash, two_fa_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		u.ID,
		u.Username,
		u.Email,
		u.DisplayName,
		u.Bio,
		u.AvatarURL,
		u.PasswordHash,
		u.TwoFAEnabled,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict(fmt.Sprintf("username or email already taken: %s", u.Username))
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a live user by ID. Soft-deleted users are not found.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`
	return r.scanUser(ctx, query, id)
}

// GetByUsername retrieves a live user by their username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 AND deleted_at IS NULL`
	return r.scanUser(ctx, query, username)
}

// UpdateProfile persists the profile fields of an existing user.
func (r *UserRepository) UpdateProfile(ctx context.Context, tx database.DBTX, u *domain.User) error {
	query := `
		UPDATE users
		SET display_name = $1, bio = $2, avatar_url = $3, updated_at = $4
		WHERE id = $5 AND deleted_at IS NULL`

	ct, err := tx.Exec(ctx, query,
		u.DisplayName,
		u.Bio,
		u.AvatarURL,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", u.ID)
	}

	return nil
}

// UpdatePasswordHash replaces the stored credential hash.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, tx database.DBTX, id, hash string, updatedAt time.Time) error {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`

	ct, err := tx.Exec(ctx, query, hash, updatedAt, id)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}

	return nil
}

// SetTwoFAEnabled toggles the two-factor flag.
func (r *UserRepository) SetTwoFAEnabled(ctx context.Context, tx database.DBTX, id string, enabled bool, updatedAt time.Time) error {
	query := `UPDATE users SET two_fa_enabled = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`

	ct, err := tx.Exec(ctx, query, enabled, updatedAt, id)
	if err != nil {
		return fmt.Errorf("set two_fa_enabled: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}

	return nil
}

// SoftDelete marks the user deleted. Deleting an already-deleted or unknown
// user returns not found, so callers can distinguish the first delete.
func (r *UserRepository) SoftDelete(ctx context.Context, tx database.DBTX, id string, deletedAt time.Time) error {
	query := `UPDATE users SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`

	ct, err := tx.Exec(ctx, query, deletedAt, id)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}

	return nil
}

// scanUser executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.DisplayName,
		&u.Bio,
		&u.AvatarURL,
		&u.PasswordHash,
		&u.TwoFAEnabled,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
