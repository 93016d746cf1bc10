// Package mock provides stand-in push providers for environments without
// APNs/FCM credentials.
package mock

import (
	"context"
	"log/slog"
	"time"

	"github.com/proerror77/Nova-sub006/services/notification/internal/domain"
)

// Provider logs deliveries and always succeeds. It simulates a 10ms gateway
// round-trip.
type Provider struct {
	name   string
	logger *slog.Logger
}

// NewAPNs creates a mock APNs provider.
func NewAPNs(logger *slog.Logger) *Provider {
	return &Provider{name: "mock-apns", logger: logger}
}

// NewFCM creates a mock FCM provider.
func NewFCM(logger *slog.Logger) *Provider {
	return &Provider{name: "mock-fcm", logger: logger}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return p.name
}

// Send logs the delivery and simulates gateway latency.
func (p *Provider) Send(ctx context.Context, job *domain.Job) error {
	time.Sleep(10 * time.Millisecond)

	p.logger.InfoContext(ctx, "mock provider delivered push",
		slog.String("provider", p.name),
		slog.String("job_id", job.ID),
		slog.String("platform", job.Platform),
		slog.String("title", job.Title),
		slog.Int("badge", job.Badge),
	)
	return nil
}
