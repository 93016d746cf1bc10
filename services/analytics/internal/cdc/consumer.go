package cdc

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
)

// messageReader is the subset of kafka.Reader the consumer uses, extracted so
// tests can inject a stub.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// deadLetterer forwards terminally failed messages. *kafka.DLQProducer
// satisfies it.
type deadLetterer interface {
	Publish(ctx context.Context, originalMsg kafkago.Message, lastErr error, attempts int) error
}

// OffsetStore persists offset checkpoints after broker commits.
type OffsetStore interface {
	SaveOffset(ctx context.Context, topic string, partition int, offset int64) error
}

// ConsumerConfig holds CDC consumer tuning.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	Topic       string
	MaxInflight int
	MaxSkew     time.Duration
}

// task tracks one fetched message through the fan-out. done is closed once
// the message's fate is decided (stored, skipped, or dead-lettered). abandoned
// marks tasks cut off by shutdown; their offsets must not be committed.
type task struct {
	msg       kafkago.Message
	done      chan struct{}
	abandoned bool
}

// Consumer ingests one CDC topic with bounded fan-out: up to MaxInflight
// messages process concurrently, but a sequencer commits offsets strictly in
// fetch order, so a checkpoint never advances past an undecided message.
type Consumer struct {
	reader   messageReader
	sink     Sink
	offsets  OffsetStore
	deduper  *kafka.Deduper
	dlq      deadLetterer
	notifier InvalidationPublisher
	cfg      ConsumerConfig
	policy   resilience.Policy
	logger   *slog.Logger

	closeOnce sync.Once
}

// NewConsumer creates a CDC consumer for one topic. notifier may be nil for
// streams whose records never trigger feed invalidations.
func NewConsumer(cfg ConsumerConfig, sink Sink, offsets OffsetStore, deduper *kafka.Deduper, dlq deadLetterer, notifier InvalidationPublisher, logger *slog.Logger) *Consumer {
	if cfg.MaxInflight < 1 {
		cfg.MaxInflight = 16
	}
	if cfg.MaxSkew <= 0 {
		cfg.MaxSkew = 12 * time.Hour
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	return &Consumer{
		reader:   reader,
		sink:     sink,
		offsets:  offsets,
		deduper:  deduper,
		dlq:      dlq,
		notifier: notifier,
		cfg:      cfg,
		policy:   resilience.DatabasePreset("cdc-" + cfg.Topic).Retry,
		logger:   logger.With(slog.String("topic", cfg.Topic)),
	}
}

// Start runs the fetch/process/commit pipeline until the context is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("cdc consumer started",
		slog.String("group_id", c.cfg.GroupID),
		slog.Int("max_inflight", c.cfg.MaxInflight),
	)

	// commitCh feeds the sequencer in fetch order; its capacity bounds the
	// number of in-flight messages.
	commitCh := make(chan *task, c.cfg.MaxInflight)

	var committer sync.WaitGroup
	committer.Add(1)
	go func() {
		defer committer.Done()
		c.commitLoop(ctx, commitCh)
	}()

	sem := make(chan struct{}, c.cfg.MaxInflight)
	var workers sync.WaitGroup

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			c.logger.Error("fetch cdc message failed", slog.String("error", err.Error()))
			continue
		}

		t := &task{msg: msg, done: make(chan struct{})}

		select {
		case commitCh <- t:
		case <-ctx.Done():
			t.abandoned = true
			close(t.done)
			goto drain
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			t.abandoned = true
			close(t.done)
			goto drain
		}

		workers.Add(1)
		go func() {
			defer workers.Done()
			defer func() { <-sem }()
			defer close(t.done)
			c.process(ctx, t.msg)
		}()
	}

drain:
	workers.Wait()
	close(commitCh)
	committer.Wait()
	c.logger.Info("cdc consumer stopped")
	return nil
}

// commitLoop commits offsets in fetch order once each message is decided,
// then persists the checkpoint.
func (c *Consumer) commitLoop(ctx context.Context, commitCh <-chan *task) {
	for t := range commitCh {
		<-t.done
		if t.abandoned {
			continue
		}

		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := c.reader.CommitMessages(commitCtx, t.msg); err != nil {
			c.logger.Error("commit cdc offset failed",
				slog.Int64("offset", t.msg.Offset),
				slog.String("error", err.Error()),
			)
			cancel()
			continue
		}
		if err := c.offsets.SaveOffset(commitCtx, t.msg.Topic, t.msg.Partition, t.msg.Offset+1); err != nil {
			c.logger.Error("persist cdc checkpoint failed",
				slog.Int64("offset", t.msg.Offset),
				slog.String("error", err.Error()),
			)
		}
		cancel()
		offsetCommitted.WithLabelValues(t.msg.Topic).Set(float64(t.msg.Offset + 1))
	}
}

// process decides the fate of one message: store it, skip a duplicate, or
// dead-letter it. It never blocks the sequencer indefinitely.
func (c *Consumer) process(ctx context.Context, msg kafkago.Message) {
	start := time.Now()
	recordsReceived.WithLabelValues(c.cfg.Topic).Inc()

	rec, err := ParseRecord(msg.Value)
	if err != nil {
		c.deadLetter(ctx, msg, err)
		return
	}
	if err := rec.Validate(time.Now().UTC(), c.cfg.MaxSkew); err != nil {
		c.deadLetter(ctx, msg, err)
		return
	}

	pk, apply, err := Transform(rec, c.sink)
	if err != nil {
		c.deadLetter(ctx, msg, err)
		return
	}

	dedupKey := rec.DedupKey(pk)
	if !c.deduper.ProcessOrSkip(dedupKey) {
		recordsDeduped.WithLabelValues(c.cfg.Topic).Inc()
		return
	}

	err = resilience.Retry(ctx, c.policy, apply)
	if err != nil {
		// Release the claim so a redelivery can try again.
		c.deduper.Forget(dedupKey)
		c.deadLetter(ctx, msg, err)
		return
	}

	recordsStored.WithLabelValues(c.cfg.Topic).Inc()

	if inv, ok := InvalidationFor(rec); ok {
		c.publishInvalidation(ctx, inv)
	}

	processDuration.WithLabelValues(c.cfg.Topic).Observe(time.Since(start).Seconds())
}

// publishInvalidation is best-effort: the projection is already stored, and a
// missed notice only delays the feed until the next warmer pass.
func (c *Consumer) publishInvalidation(ctx context.Context, inv Invalidation) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.PublishInvalidation(context.WithoutCancel(ctx), inv); err != nil {
		invalidationsFailed.WithLabelValues(c.cfg.Topic).Inc()
		c.logger.Warn("feed invalidation publish failed",
			slog.String("key", inv.Key()),
			slog.String("reason", inv.Reason),
			slog.String("error", err.Error()),
		)
		return
	}
	invalidationsPublished.WithLabelValues(c.cfg.Topic).Inc()
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafkago.Message, cause error) {
	recordsDeadLettered.WithLabelValues(c.cfg.Topic).Inc()
	c.logger.Warn("cdc record dead-lettered",
		slog.Int64("offset", msg.Offset),
		slog.String("error", cause.Error()),
	)
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Publish(context.WithoutCancel(ctx), msg, cause, 1); err != nil {
		c.logger.Error("cdc dead-letter publish failed",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if cerr := c.reader.Close(); cerr != nil {
			err = fmt.Errorf("close cdc reader: %w", cerr)
		}
	})
	return err
}
