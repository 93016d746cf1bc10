// Package repository defines the persistence contract of the messaging
// service.
package repository

import (
	"context"

	"github.com/proerror77/Nova-sub006/services/messaging/internal/domain"
)

// MessageRepository persists messages and answers membership checks.
type MessageRepository interface {
	Insert(ctx context.Context, msg *domain.Message) error
	History(ctx context.Context, conversationID, beforeID string, limit int) ([]domain.Message, error)
	IsMember(ctx context.Context, conversationID, userID string) (bool, error)
}
