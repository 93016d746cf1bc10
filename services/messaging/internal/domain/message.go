// Package domain defines the messaging service's core entities.
package domain

import (
	"time"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
)

// maxBodyLength bounds a single message body.
const maxBodyLength = 4000

// Message is one chat message. The Postgres row is authoritative; the stream
// entry is a delivery copy.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks the message fields before persistence.
func (m *Message) Validate() error {
	if m.ConversationID == "" {
		return apperrors.InvalidInput("conversation id required")
	}
	if m.SenderID == "" {
		return apperrors.InvalidInput("sender id required")
	}
	if m.Body == "" {
		return apperrors.InvalidInput("message body must not be empty")
	}
	if len(m.Body) > maxBodyLength {
		return apperrors.InvalidInput("message body too long")
	}
	return nil
}
