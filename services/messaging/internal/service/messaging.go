// Package service implements message sending and history reads. The Postgres
// write is authoritative; stream fan-out and the Kafka event are best-effort
// and never fail a send.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/pkg/kafka"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/domain"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/repository"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/stream"
)

const (
	sourceService  = "messaging"
	defaultHistory = 50
	maxHistory     = 200
)

// MessagingService handles message writes and reads.
type MessagingService struct {
	repo      repository.MessageRepository
	publisher *stream.Publisher
	producer  *kafka.Producer
	logger    *slog.Logger
}

// NewMessagingService wires the messaging service. producer may be nil in
// contexts that do not emit events.
func NewMessagingService(repo repository.MessageRepository, publisher *stream.Publisher, producer *kafka.Producer, logger *slog.Logger) *MessagingService {
	return &MessagingService{
		repo:      repo,
		publisher: publisher,
		producer:  producer,
		logger:    logger,
	}
}

// Send persists a message and fans it out. The returned message carries the
// assigned id; delivery beyond the database is best-effort.
func (s *MessagingService) Send(ctx context.Context, conversationID, senderID, body string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	member, err := s.repo.IsMember(ctx, conversationID, senderID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, apperrors.PermissionDenied("sender is not a member of the conversation")
	}

	if err := s.repo.Insert(ctx, msg); err != nil {
		return nil, err
	}

	entryID, err := s.publisher.Publish(ctx, msg)
	if err != nil {
		s.logger.WarnContext(ctx, "stream publish failed, message delivered on next replay",
			slog.String("message_id", msg.ID),
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
	}

	s.emitSentEvent(ctx, msg, entryID)
	return msg, nil
}

// History reads a page of a conversation's messages, newest first. The reader
// must be a member.
func (s *MessagingService) History(ctx context.Context, conversationID, userID, beforeID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = defaultHistory
	}
	if limit > maxHistory {
		return nil, apperrors.InvalidInput(fmt.Sprintf("history page must not exceed %d", maxHistory))
	}

	member, err := s.repo.IsMember(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, apperrors.PermissionDenied("reader is not a member of the conversation")
	}

	return s.repo.History(ctx, conversationID, beforeID, limit)
}

// Authorize reports whether the user may attach to the conversation.
func (s *MessagingService) Authorize(ctx context.Context, conversationID, userID string) error {
	member, err := s.repo.IsMember(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return apperrors.PermissionDenied("user is not a member of the conversation")
	}
	return nil
}

// sentEventPayload is the message.sent event body. The message body itself
// stays out of the event; analytics does not need content.
type sentEventPayload struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	StreamEntryID  string    `json:"stream_entry_id,omitempty"`
	SentAt         time.Time `json:"sent_at"`
}

func (s *MessagingService) emitSentEvent(ctx context.Context, msg *domain.Message, entryID string) {
	if s.producer == nil {
		return
	}

	env, err := kafka.NewEnvelope(ctx, kafka.EventMessageSent, "message", msg.ID, sourceService, sentEventPayload{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		StreamEntryID:  entryID,
		SentAt:         msg.CreatedAt,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "build message.sent envelope failed",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	// Keyed by conversation so per-conversation ordering survives Kafka.
	if err := s.producer.PublishKeyed(ctx, kafka.TopicMessagingEvents, msg.ConversationID, env); err != nil {
		s.logger.WarnContext(ctx, "message.sent publish failed",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
	}
}
