package domain

import (
	"regexp"
	"time"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
)

// usernamePattern restricts usernames to lowercase handles: letters, digits,
// underscores, 3-30 characters, starting with a letter.
var usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{2,29}$`)

// User is the identity aggregate. Deletion is soft: DeletedAt is set and the
// row stays for audit while downstream services fan out the cleanup.
type User struct {
	ID           string
	Username     string
	Email        string
	DisplayName  string
	Bio          string
	AvatarURL    string
	PasswordHash string
	TwoFAEnabled bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Deleted reports whether the user has been soft-deleted.
func (u *User) Deleted() bool {
	return u.DeletedAt != nil
}

// ValidateUsername checks the username against the handle rules.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return apperrors.InvalidInput("username must be 3-30 lowercase letters, digits, or underscores, starting with a letter")
	}
	return nil
}
