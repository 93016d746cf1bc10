// Package ingest lands application events for ranking and trending signals.
// It trades latency for throughput: events accumulate until the batch is full
// or the flush timer fires, then land in one round trip.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/proerror77/Nova-sub006/pkg/kafka"
	"github.com/proerror77/Nova-sub006/pkg/resilience"
	"github.com/proerror77/Nova-sub006/services/analytics/internal/repository/postgres"
)

// messageReader is the subset of kafka.Reader the batcher uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// EventSink lands event batches. *postgres.AnalyticsRepository satisfies it.
type EventSink interface {
	InsertEventsBatch(ctx context.Context, rows []postgres.EventRow) error
}

// BatcherConfig holds batching consumer tuning.
type BatcherConfig struct {
	Brokers       []string
	GroupID       string
	Topic         string
	BatchSize     int
	FlushInterval time.Duration
}

// Batcher consumes application events, deduplicates by event id, and inserts
// them in batches. Offsets commit only after the batch lands, so a crash
// between insert and commit redelivers the batch and the ON CONFLICT guard
// absorbs it.
type Batcher struct {
	reader  messageReader
	sink    EventSink
	deduper *kafka.Deduper
	cfg     BatcherConfig
	policy  resilience.Policy
	logger  *slog.Logger

	closeOnce sync.Once
}

// NewBatcher creates a batching events consumer.
func NewBatcher(cfg BatcherConfig, sink EventSink, deduper *kafka.Deduper, logger *slog.Logger) *Batcher {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 200
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	return &Batcher{
		reader:  reader,
		sink:    sink,
		deduper: deduper,
		cfg:     cfg,
		policy: resilience.Policy{
			MaxRetries: 2,
			Backoff:    100 * time.Millisecond,
			MaxBackoff: time.Second,
			Jitter:     true,
		},
		logger: logger.With(slog.String("topic", cfg.Topic)),
	}
}

// Start runs the fetch/flush loop until the context is canceled. A final
// flush lands whatever accumulated before shutdown.
func (b *Batcher) Start(ctx context.Context) error {
	b.logger.Info("event batcher started",
		slog.Int("batch_size", b.cfg.BatchSize),
		slog.Duration("flush_interval", b.cfg.FlushInterval),
	)

	var (
		rows []postgres.EventRow
		msgs []kafkago.Message
	)

	fetched := make(chan kafkago.Message)
	fetchErr := make(chan error, 1)
	go func() {
		for {
			msg, err := b.reader.FetchMessage(ctx)
			if err != nil {
				fetchErr <- err
				return
			}
			select {
			case fetched <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	timer := time.NewTicker(b.cfg.FlushInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			b.flush(context.WithoutCancel(ctx), rows, msgs)
			b.logger.Info("event batcher stopped")
			return nil

		case err := <-fetchErr:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				b.flush(context.WithoutCancel(ctx), rows, msgs)
				b.logger.Info("event batcher stopped")
				return nil
			}
			return fmt.Errorf("fetch event message: %w", err)

		case msg := <-fetched:
			eventsReceived.WithLabelValues(b.cfg.Topic).Inc()
			if row, ok := b.toRow(msg); ok {
				rows = append(rows, row)
			}
			// The message is tracked for commit even when skipped, so dedup
			// and decode failures still advance the offset.
			msgs = append(msgs, msg)

			if len(rows) >= b.cfg.BatchSize {
				b.flush(ctx, rows, msgs)
				rows, msgs = nil, nil
				timer.Reset(b.cfg.FlushInterval)
			}

		case <-timer.C:
			if len(msgs) > 0 {
				b.flush(ctx, rows, msgs)
				rows, msgs = nil, nil
			}
		}
	}
}

// toRow converts a broker message into an event row. Undecodable envelopes
// and duplicates are skipped with a metric; their offsets still commit.
func (b *Batcher) toRow(msg kafkago.Message) (postgres.EventRow, bool) {
	env, err := kafka.UnmarshalEnvelope(msg.Value)
	if err != nil {
		eventsSkipped.WithLabelValues(b.cfg.Topic, "undecodable").Inc()
		b.logger.Warn("undecodable event skipped",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return postgres.EventRow{}, false
	}

	if !b.deduper.ProcessOrSkip(env.EventID) {
		eventsSkipped.WithLabelValues(b.cfg.Topic, "duplicate").Inc()
		return postgres.EventRow{}, false
	}

	return postgres.EventRow{
		EventID:     env.EventID,
		EventType:   env.EventType,
		AggregateID: env.AggregateID,
		OccurredAt:  env.OccurredAt,
		Payload:     env.Payload,
	}, true
}

// flush lands the batch and commits the covered offsets. The insert is
// idempotent, so it retries in place first; only after the retries are spent
// does the batch wait for redelivery, which commits nothing and lets the
// ON CONFLICT guard absorb the replay.
func (b *Batcher) flush(ctx context.Context, rows []postgres.EventRow, msgs []kafkago.Message) {
	if len(msgs) == 0 {
		return
	}

	start := time.Now()
	err := resilience.Retry(ctx, b.policy, func(ctx context.Context) error {
		return b.sink.InsertEventsBatch(ctx, rows)
	})
	if err != nil {
		b.logger.Error("event batch insert failed",
			slog.Int("rows", len(rows)),
			slog.String("error", err.Error()),
		)
		// Release dedup claims so the redelivered batch is not skipped.
		for _, row := range rows {
			b.deduper.Forget(row.EventID)
		}
		return
	}

	if err := b.reader.CommitMessages(ctx, msgs...); err != nil {
		b.logger.Error("event batch commit failed",
			slog.Int("messages", len(msgs)),
			slog.String("error", err.Error()),
		)
		return
	}

	eventsLanded.WithLabelValues(b.cfg.Topic).Add(float64(len(rows)))
	flushDuration.WithLabelValues(b.cfg.Topic).Observe(time.Since(start).Seconds())
	batchSize.WithLabelValues(b.cfg.Topic).Observe(float64(len(rows)))
}

// Close releases the underlying reader.
func (b *Batcher) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if cerr := b.reader.Close(); cerr != nil {
			err = fmt.Errorf("close event reader: %w", cerr)
		}
	})
	return err
}
