package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/proerror77/Nova-sub006/pkg/database"
	"github.com/proerror77/Nova-sub006/pkg/kafka"
)

// Publisher is the broker-facing side of the drainer. *kafka.Producer
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, env *kafka.Envelope) error
}

// DrainerConfig holds drainer tuning.
type DrainerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	PurgeAfter   time.Duration
	PurgeEvery   time.Duration
}

// DefaultDrainerConfig returns sensible defaults for the outbox drainer.
func DefaultDrainerConfig() DrainerConfig {
	return DrainerConfig{
		PollInterval: 200 * time.Millisecond,
		BatchSize:    100,
		MaxAttempts:  10,
		PurgeAfter:   24 * time.Hour,
		PurgeEvery:   time.Hour,
	}
}

// Drainer polls the outbox and republishes pending rows. SKIP LOCKED makes
// concurrent drainers safe, but a single leader per database is the intended
// deployment. Rows for the same aggregate publish in insertion order: once a
// publish fails, later rows of that aggregate are skipped until the next
// cycle.
type Drainer struct {
	db     database.DBTX
	store  *Store
	pub    Publisher
	cfg    DrainerConfig
	logger *slog.Logger
}

// NewDrainer creates an outbox drainer.
func NewDrainer(db database.DBTX, pub Publisher, cfg DrainerConfig, logger *slog.Logger) *Drainer {
	return &Drainer{
		db:     db,
		store:  NewStore(db),
		pub:    pub,
		cfg:    cfg,
		logger: logger,
	}
}

// Run polls until the context is canceled.
func (d *Drainer) Run(ctx context.Context) error {
	d.logger.Info("outbox drainer started",
		slog.Duration("poll_interval", d.cfg.PollInterval),
		slog.Int("batch_size", d.cfg.BatchSize),
	)

	poll := time.NewTicker(d.cfg.PollInterval)
	defer poll.Stop()
	purge := time.NewTicker(d.cfg.PurgeEvery)
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox drainer stopping")
			return nil
		case <-purge.C:
			if n, err := d.store.PurgePublished(ctx, d.cfg.PurgeAfter); err != nil {
				d.logger.Error("outbox purge failed", slog.String("error", err.Error()))
			} else if n > 0 {
				purgedTotal.Add(float64(n))
				d.logger.Debug("outbox purged", slog.Int64("rows", n))
			}
		case <-poll.C:
			if _, err := d.DrainOnce(ctx); err != nil {
				d.logger.Error("outbox drain cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}

// DrainOnce claims one batch, publishes it, and commits the publication marks.
// Returns the number of rows published.
func (d *Drainer) DrainOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		drainDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := d.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin outbox drain tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := d.store.FetchPending(ctx, tx, d.cfg.BatchSize, d.cfg.MaxAttempts)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, tx.Commit(ctx)
	}

	published := 0
	failedAggregates := make(map[string]struct{})

	for _, row := range rows {
		// A failed aggregate blocks its later rows; attempts stay untouched
		// because those rows were never tried.
		if _, blocked := failedAggregates[row.AggregateID]; blocked {
			continue
		}

		env, err := kafka.UnmarshalEnvelope(row.Payload)
		if err != nil {
			d.logger.Error("outbox row has undecodable payload",
				slog.String("outbox_id", row.ID),
				slog.String("error", err.Error()),
			)
			if err := d.store.IncrementAttempt(ctx, tx, row.ID); err != nil {
				return published, err
			}
			publishFailures.WithLabelValues(row.EventType).Inc()
			continue
		}

		topic, ok := kafka.TopicForEventType(env.EventType)
		if !ok {
			d.logger.Error("outbox row has no topic mapping",
				slog.String("outbox_id", row.ID),
				slog.String("event_type", env.EventType),
			)
			if err := d.store.IncrementAttempt(ctx, tx, row.ID); err != nil {
				return published, err
			}
			publishFailures.WithLabelValues(row.EventType).Inc()
			continue
		}

		if err := d.pub.Publish(ctx, topic, env); err != nil {
			d.logger.Warn("outbox publish failed",
				slog.String("outbox_id", row.ID),
				slog.String("event_type", row.EventType),
				slog.String("aggregate_id", row.AggregateID),
				slog.Int("attempt", row.AttemptCount+1),
				slog.String("error", err.Error()),
			)
			failedAggregates[row.AggregateID] = struct{}{}
			if err := d.store.IncrementAttempt(ctx, tx, row.ID); err != nil {
				return published, err
			}
			publishFailures.WithLabelValues(row.EventType).Inc()
			continue
		}

		if err := d.store.MarkPublished(ctx, tx, row.ID); err != nil {
			return published, err
		}
		publishedTotal.WithLabelValues(row.EventType).Inc()
		published++
	}

	if err := tx.Commit(ctx); err != nil {
		return published, fmt.Errorf("commit outbox drain tx: %w", err)
	}
	return published, nil
}
