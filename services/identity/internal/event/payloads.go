// Package event defines the payloads the identity service records in its
// outbox. The envelope around them carries type, aggregate, and correlation
// metadata; these structs are only the domain-specific body.
package event

import "time"

// UserCreatedPayload is the body of a user.created event.
type UserCreatedPayload struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProfileUpdatedPayload is the body of a user.profile_updated event.
// UpdatedFields names which profile attributes changed so consumers can skip
// updates they do not care about.
type ProfileUpdatedPayload struct {
	UserID        string    `json:"user_id"`
	UpdatedFields []string  `json:"updated_fields"`
	DisplayName   string    `json:"display_name"`
	Bio           string    `json:"bio"`
	AvatarURL     string    `json:"avatar_url"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PasswordChangedPayload is the body of a user.password_changed event. It
// deliberately carries no credential material.
type PasswordChangedPayload struct {
	UserID    string    `json:"user_id"`
	ChangedAt time.Time `json:"changed_at"`
}

// TwoFAEnabledPayload is the body of a user.two_fa_enabled event.
type TwoFAEnabledPayload struct {
	UserID    string    `json:"user_id"`
	EnabledAt time.Time `json:"enabled_at"`
}

// UserDeletedPayload is the body of a user.deleted event. Consumers treat it
// as the trigger for cascading cleanup of the user's content.
type UserDeletedPayload struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	DeletedAt time.Time `json:"deleted_at"`
}
