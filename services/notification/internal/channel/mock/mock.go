// Package mock provides stand-in channel senders.
package mock

import (
	"context"
	"log/slog"

	"github.com/proerror77/Nova-sub006/services/notification/internal/channel"
)

// Sender logs deliveries and always succeeds.
type Sender struct {
	name   string
	logger *slog.Logger
}

// NewEmail creates a mock email sender.
func NewEmail(logger *slog.Logger) *Sender {
	return &Sender{name: "mock-email", logger: logger}
}

// NewInApp creates a mock in-app sender.
func NewInApp(logger *slog.Logger) *Sender {
	return &Sender{name: "mock-in-app", logger: logger}
}

// Name returns the sender name.
func (s *Sender) Name() string {
	return s.name
}

// Send logs the delivery.
func (s *Sender) Send(ctx context.Context, d channel.Delivery) error {
	s.logger.InfoContext(ctx, "mock channel delivered",
		slog.String("sender", s.name),
		slog.String("user_id", d.UserID),
		slog.String("title", d.Title),
	)
	return nil
}
