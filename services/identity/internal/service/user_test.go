package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/proerror77/Nova-sub006/pkg/database"
	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/pkg/outbox"
	"github.com/proerror77/Nova-sub006/services/identity/internal/domain"
)

// stubRepo implements repository.UserRepository with overridable funcs.
type stubRepo struct {
	create             func(ctx context.Context, tx database.DBTX, u *domain.User) error
	getByID            func(ctx context.Context, id string) (*domain.User, error)
	getByUsername      func(ctx context.Context, username string) (*domain.User, error)
	updateProfile      func(ctx context.Context, tx database.DBTX, u *domain.User) error
	updatePasswordHash func(ctx context.Context, tx database.DBTX, id, hash string, updatedAt time.Time) error
	setTwoFAEnabled    func(ctx context.Context, tx database.DBTX, id string, enabled bool, updatedAt time.Time) error
	softDelete         func(ctx context.Context, tx database.DBTX, id string, deletedAt time.Time) error
}

func (s *stubRepo) Create(ctx context.Context, tx database.DBTX, u *domain.User) error {
	return s.create(ctx, tx, u)
}

func (s *stubRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getByID(ctx, id)
}

func (s *stubRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getByUsername(ctx, username)
}

func (s *stubRepo) UpdateProfile(ctx context.Context, tx database.DBTX, u *domain.User) error {
	return s.updateProfile(ctx, tx, u)
}

func (s *stubRepo) UpdatePasswordHash(ctx context.Context, tx database.DBTX, id, hash string, updatedAt time.Time) error {
	return s.updatePasswordHash(ctx, tx, id, hash, updatedAt)
}

func (s *stubRepo) SetTwoFAEnabled(ctx context.Context, tx database.DBTX, id string, enabled bool, updatedAt time.Time) error {
	return s.setTwoFAEnabled(ctx, tx, id, enabled, updatedAt)
}

func (s *stubRepo) SoftDelete(ctx context.Context, tx database.DBTX, id string, deletedAt time.Time) error {
	return s.softDelete(ctx, tx, id, deletedAt)
}

func newTestService(t *testing.T, repo *stubRepo) (*UserService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	svc := NewUserService(mock, repo, outbox.NewStore(mock), slog.New(slog.DiscardHandler))
	return svc, mock
}

// expectOutboxAppend registers the expectation for the outbox insert that
// accompanies every write.
func expectOutboxAppend(mock pgxmock.PgxPoolIface, eventType, aggregateID string) {
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(
			pgxmock.AnyArg(),
			"user",
			aggregateID,
			eventType,
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

// --- Register ---

func TestRegister_AppendsOutboxInSameTx(t *testing.T) {
	var created *domain.User
	repo := &stubRepo{
		create: func(_ context.Context, _ database.DBTX, u *domain.User) error {
			created = u
			return nil
		},
	}
	svc, mock := newTestService(t, repo)

	mock.ExpectBegin()
	// The aggregate id is generated, so match any.
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "user", pgxmock.AnyArg(), "user.created", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	user, err := svc.Register(context.Background(), RegisterInput{
		Username: "ada",
		Email:    "ada@example.com",
		Password: "Sup3rSecret",
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, "ada", user.DisplayName, "display name defaults to username")
	assert.NotEqual(t, "Sup3rSecret", user.PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_InvalidUsername(t *testing.T) {
	svc, _ := newTestService(t, &stubRepo{})

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "Not Valid!",
		Email:    "a@b.com",
		Password: "Sup3rSecret",
	})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestRegister_WeakPassword(t *testing.T) {
	svc, _ := newTestService(t, &stubRepo{})

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "ada",
		Email:    "a@b.com",
		Password: "alllowercase",
	})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestRegister_RepoErrorRollsBack(t *testing.T) {
	repo := &stubRepo{
		create: func(_ context.Context, _ database.DBTX, _ *domain.User) error {
			return apperrors.Conflict("username taken")
		},
	}
	svc, mock := newTestService(t, repo)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "ada",
		Email:    "ada@example.com",
		Password: "Sup3rSecret",
	})
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- UpdateProfile ---

func TestUpdateProfile_RecordsChangedFields(t *testing.T) {
	existing := &domain.User{ID: "u-1", Username: "ada", DisplayName: "Ada"}
	var saved *domain.User
	repo := &stubRepo{
		getByID: func(_ context.Context, _ string) (*domain.User, error) { return existing, nil },
		updateProfile: func(_ context.Context, _ database.DBTX, u *domain.User) error {
			saved = u
			return nil
		},
	}
	svc, mock := newTestService(t, repo)

	mock.ExpectBegin()
	expectOutboxAppend(mock, "user.profile_updated", "u-1")
	mock.ExpectCommit()

	bio := "systems person"
	user, err := svc.UpdateProfile(context.Background(), "u-1", UpdateProfileInput{Bio: &bio})
	require.NoError(t, err)

	assert.Equal(t, "systems person", user.Bio)
	assert.Equal(t, saved, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProfile_NoChangesSkipsTx(t *testing.T) {
	existing := &domain.User{ID: "u-1", Username: "ada"}
	repo := &stubRepo{
		getByID: func(_ context.Context, _ string) (*domain.User, error) { return existing, nil },
	}
	svc, mock := newTestService(t, repo)

	user, err := svc.UpdateProfile(context.Background(), "u-1", UpdateProfileInput{})
	require.NoError(t, err)
	assert.Equal(t, existing, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProfile_EmptyDisplayName(t *testing.T) {
	existing := &domain.User{ID: "u-1", Username: "ada"}
	repo := &stubRepo{
		getByID: func(_ context.Context, _ string) (*domain.User, error) { return existing, nil },
	}
	svc, _ := newTestService(t, repo)

	empty := ""
	_, err := svc.UpdateProfile(context.Background(), "u-1", UpdateProfileInput{DisplayName: &empty})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

// --- ChangePassword ---

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Curr3ntPass"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &stubRepo{
		getByID: func(_ context.Context, _ string) (*domain.User, error) {
			return &domain.User{ID: "u-1", PasswordHash: string(hash)}, nil
		},
	}
	svc, _ := newTestService(t, repo)

	err = svc.ChangePassword(context.Background(), "u-1", "WrongPass1", "N3wPassword")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthenticated))
}

func TestChangePassword_Success(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Curr3ntPass"), bcrypt.MinCost)
	require.NoError(t, err)

	var newHash string
	repo := &stubRepo{
		getByID: func(_ context.Context, _ string) (*domain.User, error) {
			return &domain.User{ID: "u-1", PasswordHash: string(hash)}, nil
		},
		updatePasswordHash: func(_ context.Context, _ database.DBTX, _ string, h string, _ time.Time) error {
			newHash = h
			return nil
		},
	}
	svc, mock := newTestService(t, repo)

	mock.ExpectBegin()
	expectOutboxAppend(mock, "user.password_changed", "u-1")
	mock.ExpectCommit()

	require.NoError(t, svc.ChangePassword(context.Background(), "u-1", "Curr3ntPass", "N3wPassword"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("N3wPassword")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePassword_SameAsCurrent(t *testing.T) {
	svc, _ := newTestService(t, &stubRepo{})

	err := svc.ChangePassword(context.Background(), "u-1", "S4mePassword", "S4mePassword")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

// --- EnableTwoFA ---

func TestEnableTwoFA_AlreadyEnabled(t *testing.T) {
	repo := &stubRepo{
		getByID: func(_ context.Context, _ string) (*domain.User, error) {
			return &domain.User{ID: "u-1", TwoFAEnabled: true}, nil
		},
	}
	svc, _ := newTestService(t, repo)

	err := svc.EnableTwoFA(context.Background(), "u-1")
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestEnableTwoFA_Success(t *testing.T) {
	repo := &stubRepo{
		getByID: func(_ context.Context, _ string) (*domain.User, error) {
			return &domain.User{ID: "u-1"}, nil
		},
		setTwoFAEnabled: func(_ context.Context, _ database.DBTX, _ string, enabled bool, _ time.Time) error {
			assert.True(t, enabled)
			return nil
		},
	}
	svc, mock := newTestService(t, repo)

	mock.ExpectBegin()
	expectOutboxAppend(mock, "user.two_fa_enabled", "u-1")
	mock.ExpectCommit()

	require.NoError(t, svc.EnableTwoFA(context.Background(), "u-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- DeleteUser ---

func TestDeleteUser_AppendsDeletedEvent(t *testing.T) {
	repo := &stubRepo{
		getByID: func(_ context.Context, _ string) (*domain.User, error) {
			return &domain.User{ID: "u-1", Username: "ada"}, nil
		},
		softDelete: func(_ context.Context, _ database.DBTX, _ string, _ time.Time) error {
			return nil
		},
	}
	svc, mock := newTestService(t, repo)

	mock.ExpectBegin()
	expectOutboxAppend(mock, "user.deleted", "u-1")
	mock.ExpectCommit()

	require.NoError(t, svc.DeleteUser(context.Background(), "u-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser_NotFound(t *testing.T) {
	repo := &stubRepo{
		getByID: func(_ context.Context, _ string) (*domain.User, error) {
			return nil, apperrors.ErrNotFound
		},
	}
	svc, _ := newTestService(t, repo)

	err := svc.DeleteUser(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
