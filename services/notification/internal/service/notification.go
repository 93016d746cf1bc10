// Package service implements the durable push queue and multi-channel
// dispatch. Push deliveries are asynchronous: Enqueue persists a pending job
// and the worker drains it with retries. Email and in-app go out inline.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/pkg/kafka"
	"github.com/proerror77/Nova-sub006/pkg/resilience"
	"github.com/proerror77/Nova-sub006/services/notification/internal/channel"
	"github.com/proerror77/Nova-sub006/services/notification/internal/domain"
	"github.com/proerror77/Nova-sub006/services/notification/internal/provider"
	"github.com/proerror77/Nova-sub006/services/notification/internal/repository"
)

const sourceService = "notification"

// Dispatch result statuses. A channel with no configured sender is abandoned,
// not failed: nothing was attempted.
const (
	ResultQueued    = "queued"
	ResultSent      = "sent"
	ResultFailed    = "failed"
	ResultAbandoned = "abandoned"
)

// NotificationService owns job lifecycle and channel dispatch.
type NotificationService struct {
	repo      repository.JobRepository
	providers provider.Registry
	channels  map[string]channel.Sender
	producer  *kafka.Producer
	policy    resilience.Policy
	logger    *slog.Logger
}

// NewNotificationService wires the notification service. producer may be nil
// in contexts that do not emit events.
func NewNotificationService(
	repo repository.JobRepository,
	providers provider.Registry,
	channels map[string]channel.Sender,
	producer *kafka.Producer,
	policy resilience.Policy,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		repo:      repo,
		providers: providers,
		channels:  channels,
		producer:  producer,
		policy:    policy,
		logger:    logger,
	}
}

// EnqueueInput holds the parameters for a push job.
type EnqueueInput struct {
	DeviceToken string
	Platform    string
	Title       string
	Body        string
	Badge       int
	MaxRetries  int
}

// Enqueue persists a pending push job for the worker to drain.
func (s *NotificationService) Enqueue(ctx context.Context, input EnqueueInput) (*domain.Job, error) {
	maxRetries := input.MaxRetries
	if maxRetries <= 0 {
		maxRetries = domain.DefaultMaxRetries
	}

	job := &domain.Job{
		ID:          uuid.NewString(),
		DeviceToken: input.DeviceToken,
		Platform:    input.Platform,
		Title:       input.Title,
		Body:        input.Body,
		Badge:       input.Badge,
		Status:      domain.StatusPending,
		MaxRetries:  maxRetries,
		CreatedAt:   time.Now().UTC(),
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}
	jobsEnqueued.Inc()
	return job, nil
}

// Get returns one job.
func (s *NotificationService) Get(ctx context.Context, id string) (*domain.Job, error) {
	return s.repo.GetByID(ctx, id)
}

// Cancel fails a job that has not been attempted to completion yet. A job
// already sent or failed stays as it is.
func (s *NotificationService) Cancel(ctx context.Context, id string) error {
	return s.repo.Cancel(ctx, id)
}

// ProcessPending drains one batch of pending jobs. Returns the number of jobs
// handled; per-job outcomes are recorded on the job rows.
func (s *NotificationService) ProcessPending(ctx context.Context, batch int) (int, error) {
	jobs, err := s.repo.SelectPending(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("select pending jobs: %w", err)
	}

	for i := range jobs {
		if ctx.Err() != nil {
			return i, ctx.Err()
		}
		s.deliver(ctx, &jobs[i])
	}
	return len(jobs), nil
}

// deliver pushes one job through its platform provider, with backoff across
// the job's remaining retries.
func (s *NotificationService) deliver(ctx context.Context, job *domain.Job) {
	remaining := job.MaxRetries - job.RetryCount
	if remaining <= 0 {
		// SelectPending filters these out; a row seen here raced a concurrent
		// worker and is left for the status update that is already in flight.
		return
	}

	prov, ok := s.providers.For(job.Platform)
	if !ok {
		s.recordFailure(ctx, job, fmt.Sprintf("no provider for platform %s", job.Platform), remaining)
		return
	}

	policy := s.policy
	policy.MaxRetries = remaining - 1

	attempts := 0
	start := time.Now()
	err := resilience.Retry(ctx, policy, func(ctx context.Context) error {
		attempts++
		sendAttempts.Inc()
		return prov.Send(ctx, job)
	})
	sendDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		s.recordFailure(ctx, job, err.Error(), attempts)
		return
	}

	if err := s.repo.MarkSent(ctx, job.ID); err != nil {
		s.logger.ErrorContext(ctx, "mark job sent failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	jobOutcomes.WithLabelValues(domain.StatusSent).Inc()
	s.emitOutcome(ctx, job, kafka.EventNotificationSent, "")
}

func (s *NotificationService) recordFailure(ctx context.Context, job *domain.Job, lastError string, attempts int) {
	if err := s.repo.RecordFailure(ctx, job.ID, lastError, attempts); err != nil {
		s.logger.ErrorContext(ctx, "record job failure failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if job.RetryCount+attempts >= job.MaxRetries {
		jobOutcomes.WithLabelValues(domain.StatusFailed).Inc()
		s.emitOutcome(ctx, job, kafka.EventNotificationFailed, lastError)
		s.logger.WarnContext(ctx, "push job exhausted retries",
			slog.String("job_id", job.ID),
			slog.String("platform", job.Platform),
			slog.String("last_error", lastError),
		)
		return
	}

	s.logger.DebugContext(ctx, "push job will be retried",
		slog.String("job_id", job.ID),
		slog.Int("attempts", attempts),
	)
}

// DispatchInput holds a multi-channel notification request.
type DispatchInput struct {
	UserID      string
	Channels    []string
	Title       string
	Body        string
	DeviceToken string
	Platform    string
	Badge       int
}

// ChannelResult is the outcome of one channel of a dispatch.
type ChannelResult struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
	JobID   string `json:"job_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Dispatch fans one notification out over the requested channels. Push is
// queued durably; email and in-app are delivered inline. Every requested
// channel gets a result; a channel without a configured sender is abandoned.
func (s *NotificationService) Dispatch(ctx context.Context, input DispatchInput) ([]ChannelResult, error) {
	if len(input.Channels) == 0 {
		return nil, apperrors.InvalidInput("at least one channel required")
	}
	if input.Title == "" {
		return nil, apperrors.InvalidInput("title required")
	}

	results := make([]ChannelResult, 0, len(input.Channels))
	for _, ch := range input.Channels {
		if !domain.IsValidChannel(ch) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("unknown channel %q", ch))
		}
		result := s.dispatchOne(ctx, ch, input)
		dispatches.WithLabelValues(ch, result.Status).Inc()
		results = append(results, result)
	}
	return results, nil
}

func (s *NotificationService) dispatchOne(ctx context.Context, ch string, input DispatchInput) ChannelResult {
	if ch == domain.ChannelPush {
		if len(s.providers) == 0 {
			return ChannelResult{Channel: ch, Status: ResultAbandoned}
		}
		job, err := s.Enqueue(ctx, EnqueueInput{
			DeviceToken: input.DeviceToken,
			Platform:    input.Platform,
			Title:       input.Title,
			Body:        input.Body,
			Badge:       input.Badge,
		})
		if err != nil {
			return ChannelResult{Channel: ch, Status: ResultFailed, Error: err.Error()}
		}
		return ChannelResult{Channel: ch, Status: ResultQueued, JobID: job.ID}
	}

	sender, ok := s.channels[ch]
	if !ok {
		return ChannelResult{Channel: ch, Status: ResultAbandoned}
	}

	err := sender.Send(ctx, channel.Delivery{
		UserID: input.UserID,
		Title:  input.Title,
		Body:   input.Body,
	})
	if err != nil {
		return ChannelResult{Channel: ch, Status: ResultFailed, Error: err.Error()}
	}
	return ChannelResult{Channel: ch, Status: ResultSent}
}

// requestedPayload is the notification.requested event body.
type requestedPayload struct {
	UserID      string   `json:"user_id"`
	Channels    []string `json:"channels"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	DeviceToken string   `json:"device_token,omitempty"`
	Platform    string   `json:"platform,omitempty"`
	Badge       int      `json:"badge,omitempty"`
}

// HandleEvent consumes notification.requested events. Unknown event types are
// skipped.
func (s *NotificationService) HandleEvent(ctx context.Context, env *kafka.Envelope) error {
	if env.EventType != kafka.EventNotificationRequested {
		s.logger.DebugContext(ctx, "skipping unhandled event type",
			slog.String("event_type", env.EventType),
		)
		return nil
	}

	var payload requestedPayload
	if err := env.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("unmarshal notification.requested payload: %w", err)
	}

	channels := payload.Channels
	if len(channels) == 0 {
		channels = []string{domain.ChannelPush}
	}

	results, err := s.Dispatch(ctx, DispatchInput{
		UserID:      payload.UserID,
		Channels:    channels,
		Title:       payload.Title,
		Body:        payload.Body,
		DeviceToken: payload.DeviceToken,
		Platform:    payload.Platform,
		Badge:       payload.Badge,
	})
	if err != nil {
		return fmt.Errorf("dispatch requested notification: %w", err)
	}

	for _, r := range results {
		if r.Status == ResultFailed {
			s.logger.WarnContext(ctx, "requested notification channel failed",
				slog.String("event_id", env.EventID),
				slog.String("channel", r.Channel),
				slog.String("error", r.Error),
			)
		}
	}
	return nil
}

// outcomePayload is the notification.sent / notification.failed event body.
// The device token stays out of events.
type outcomePayload struct {
	JobID      string `json:"job_id"`
	Platform   string `json:"platform"`
	RetryCount int    `json:"retry_count"`
	LastError  string `json:"last_error,omitempty"`
}

func (s *NotificationService) emitOutcome(ctx context.Context, job *domain.Job, eventType, lastError string) {
	if s.producer == nil {
		return
	}

	env, err := kafka.NewEnvelope(ctx, eventType, "notification_job", job.ID, sourceService, outcomePayload{
		JobID:      job.ID,
		Platform:   job.Platform,
		RetryCount: job.RetryCount,
		LastError:  lastError,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "build outcome envelope failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.producer.PublishKeyed(ctx, kafka.TopicNotificationEvents, job.ID, env); err != nil {
		s.logger.WarnContext(ctx, "outcome publish failed",
			slog.String("job_id", job.ID),
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}
