// Package domain defines the notification service's core entities.
package domain

import (
	"time"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
)

// Push platform constants.
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

// Job status constants. sent and failed are terminal; a job never leaves a
// terminal status.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Dispatch channel constants.
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
	ChannelInApp = "in_app"
)

// DefaultMaxRetries bounds delivery attempts per job.
const DefaultMaxRetries = 3

// maxTitleLength and maxBodyLength bound push payload fields; APNs rejects
// payloads over 4KB, so anything near that is a caller bug.
const (
	maxTitleLength = 256
	maxBodyLength  = 2048
)

// Job is one durable push delivery. retry_count never exceeds max_retries.
type Job struct {
	ID          string     `json:"id"`
	DeviceToken string     `json:"device_token"`
	Platform    string     `json:"platform"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Badge       int        `json:"badge"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
}

// IsValidPlatform checks the platform string.
func IsValidPlatform(p string) bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// IsValidChannel checks the dispatch channel string.
func IsValidChannel(c string) bool {
	return c == ChannelPush || c == ChannelEmail || c == ChannelInApp
}

// RetriesLeft reports whether the job may be attempted again.
func (j *Job) RetriesLeft() bool {
	return j.RetryCount < j.MaxRetries
}

// Validate checks the job fields before persistence.
func (j *Job) Validate() error {
	if j.DeviceToken == "" {
		return apperrors.InvalidInput("device token required")
	}
	if !IsValidPlatform(j.Platform) {
		return apperrors.InvalidInput("platform must be ios or android")
	}
	if j.Title == "" {
		return apperrors.InvalidInput("title required")
	}
	if len(j.Title) > maxTitleLength {
		return apperrors.InvalidInput("title too long")
	}
	if len(j.Body) > maxBodyLength {
		return apperrors.InvalidInput("body too long")
	}
	if j.Badge < 0 {
		return apperrors.InvalidInput("badge must not be negative")
	}
	if j.MaxRetries < 0 {
		return apperrors.InvalidInput("max retries must not be negative")
	}
	return nil
}
