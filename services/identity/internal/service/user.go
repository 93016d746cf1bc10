// Package service implements the business logic of the identity service.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/proerror77/Nova-sub006/pkg/database"
	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/pkg/kafka"
	"github.com/proerror77/Nova-sub006/pkg/outbox"
	"github.com/proerror77/Nova-sub006/services/identity/internal/domain"
	"github.com/proerror77/Nova-sub006/services/identity/internal/event"
	"github.com/proerror77/Nova-sub006/services/identity/internal/repository"
)

// sourceService is the source_service stamped on every envelope this service
// emits.
const sourceService = "identity"

// aggregateType for all identity envelopes.
const aggregateType = "user"

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// UserService implements user lifecycle operations. Every state change and
// its event commit in one transaction: the repository writes the aggregate
// and the outbox store appends the envelope on the same tx, so an event is
// recorded if and only if the change committed.
type UserService struct {
	db     database.DBTX
	repo   repository.UserRepository
	outbox *outbox.Store
	logger *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(db database.DBTX, repo repository.UserRepository, ob *outbox.Store, logger *slog.Logger) *UserService {
	return &UserService{
		db:     db,
		repo:   repo,
		outbox: ob,
		logger: logger,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Username    string
	Email       string
	DisplayName string
	Password    string
}

// UpdateProfileInput holds the parameters for updating a user's profile.
// Nil fields are left unchanged.
type UpdateProfileInput struct {
	DisplayName *string
	Bio         *string
	AvatarURL   *string
}

// Register creates a new user account and records the user.created event.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if err := domain.ValidateUsername(input.Username); err != nil {
		return nil, err
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return nil, apperrors.InvalidInput("email address is not valid")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     input.Username,
		Email:        input.Email,
		DisplayName:  input.DisplayName,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}

	payload := event.UserCreatedPayload{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
	}

	err = s.withTx(ctx, func(tx database.DBTX) error {
		if err := s.repo.Create(ctx, tx, user); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, kafka.EventUserCreated, user.ID, payload)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by their handle.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return user, nil
}

// UpdateProfile applies partial profile changes and records which fields
// changed in the user.profile_updated event.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user for update: %w", err)
	}

	var updated []string
	if input.DisplayName != nil {
		if *input.DisplayName == "" {
			return nil, apperrors.InvalidInput("display name must not be empty")
		}
		user.DisplayName = *input.DisplayName
		updated = append(updated, "display_name")
	}
	if input.Bio != nil {
		user.Bio = *input.Bio
		updated = append(updated, "bio")
	}
	if input.AvatarURL != nil {
		user.AvatarURL = *input.AvatarURL
		updated = append(updated, "avatar_url")
	}

	if len(updated) == 0 {
		return user, nil
	}

	user.UpdatedAt = time.Now().UTC()
	payload := event.ProfileUpdatedPayload{
		UserID:        user.ID,
		UpdatedFields: updated,
		DisplayName:   user.DisplayName,
		Bio:           user.Bio,
		AvatarURL:     user.AvatarURL,
		UpdatedAt:     user.UpdatedAt,
	}

	err = s.withTx(ctx, func(tx database.DBTX) error {
		if err := s.repo.UpdateProfile(ctx, tx, user); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, kafka.EventUserProfileUpdated, user.ID, payload)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user profile updated",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// ChangePassword verifies the current password, stores the new hash, and
// records the user.password_changed event.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if currentPassword == newPassword {
		return apperrors.InvalidInput("new password must be different from current password")
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user for password change: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return apperrors.Unauthenticated("current password is incorrect")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	now := time.Now().UTC()
	payload := event.PasswordChangedPayload{UserID: user.ID, ChangedAt: now}

	err = s.withTx(ctx, func(tx database.DBTX) error {
		if err := s.repo.UpdatePasswordHash(ctx, tx, user.ID, string(hashedPassword), now); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, kafka.EventUserPasswordChanged, user.ID, payload)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", user.ID),
	)

	return nil
}

// EnableTwoFA turns on two-factor auth and records the event. Enabling twice
// is a conflict so the event fires exactly once per transition.
func (s *UserService) EnableTwoFA(ctx context.Context, userID string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user for two-fa enable: %w", err)
	}
	if user.TwoFAEnabled {
		return apperrors.Conflict("two-factor authentication is already enabled")
	}

	now := time.Now().UTC()
	payload := event.TwoFAEnabledPayload{UserID: user.ID, EnabledAt: now}

	err = s.withTx(ctx, func(tx database.DBTX) error {
		if err := s.repo.SetTwoFAEnabled(ctx, tx, user.ID, true, now); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, kafka.EventUserTwoFAEnabled, user.ID, payload)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "two-factor authentication enabled",
		slog.String("user_id", user.ID),
	)

	return nil
}

// DeleteUser soft-deletes the user and records user.deleted. Downstream
// consumers own the cascading cleanup of the user's content.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user for delete: %w", err)
	}

	now := time.Now().UTC()
	payload := event.UserDeletedPayload{
		UserID:    user.ID,
		Username:  user.Username,
		DeletedAt: now,
	}

	err = s.withTx(ctx, func(tx database.DBTX) error {
		if err := s.repo.SoftDelete(ctx, tx, user.ID, now); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, kafka.EventUserDeleted, user.ID, payload)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user deleted",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return nil
}

// --- Helpers ---

// withTx runs fn inside a transaction, rolling back on error.
func (s *UserService) withTx(ctx context.Context, fn func(tx database.DBTX) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// appendEvent builds an envelope for the given event type and appends it to
// the outbox on the caller's transaction.
func (s *UserService) appendEvent(ctx context.Context, tx database.DBTX, eventType, userID string, payload any) error {
	env, err := kafka.NewEnvelope(ctx, eventType, aggregateType, userID, sourceService, payload)
	if err != nil {
		return fmt.Errorf("build %s envelope: %w", eventType, err)
	}
	return s.outbox.Append(ctx, tx, env)
}

// validatePassword checks that the password meets minimum complexity
// requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
