package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/proerror77/Nova-sub006/pkg/logger"
)

// maxHandlerRetries is how many times a handler is attempted before the
// message is dead-lettered and committed.
const maxHandlerRetries = 3

// Handler processes one decoded envelope.
type Handler func(ctx context.Context, env *Envelope) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

// Consumer runs a fetch/handle/commit loop over one topic. Poison messages
// (undecodable, or failing all handler retries) go to the topic's DLQ and are
// then committed so the partition keeps moving.
type Consumer struct {
	reader    *kafka.Reader
	dlq       *DLQProducer
	logger    *slog.Logger
	handler   Handler
	closeOnce sync.Once
}

// NewConsumer creates a consumer for one topic and group. dlq may be nil, in
// which case poison messages are logged and dropped.
func NewConsumer(cfg ConsumerConfig, handler Handler, dlq *DLQProducer, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})

	return &Consumer{
		reader:  r,
		dlq:     dlq,
		logger:  log,
		handler: handler,
	}
}

// Start consumes messages until the context is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	topic := c.reader.Config().Topic
	group := c.reader.Config().GroupID
	c.logger.Info("consumer started",
		slog.String("topic", topic),
		slog.String("group", group),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", slog.String("topic", topic))
			return c.Close()
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
				continue
			}
			messagesReceived.WithLabelValues(topic, group).Inc()

			env, err := UnmarshalEnvelope(msg.Value)
			if err != nil {
				c.logger.Error("failed to unmarshal envelope",
					slog.String("error", err.Error()),
					slog.String("topic", msg.Topic),
					slog.Int64("offset", msg.Offset),
				)
				c.deadLetter(ctx, msg, err, 1)
				c.commit(ctx, msg)
				continue
			}

			msgCtx := ctx
			if env.CorrelationID != "" {
				msgCtx = logger.WithCorrelationID(ctx, env.CorrelationID)
			}

			if lastErr := c.handleWithRetries(msgCtx, env, msg); lastErr != nil {
				messagesFailed.WithLabelValues(topic, group).Inc()
				c.deadLetter(msgCtx, msg, lastErr, maxHandlerRetries)
			} else {
				messagesProcessed.WithLabelValues(topic, group).Inc()
			}
			c.commit(ctx, msg)
		}
	}
}

// handleWithRetries runs the handler with linear backoff between attempts and
// returns the last error once attempts are exhausted.
func (c *Consumer) handleWithRetries(ctx context.Context, env *Envelope, msg kafka.Message) error {
	var lastErr error
	for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
		start := time.Now()
		err := c.handler(ctx, env)
		processingDuration.WithLabelValues(msg.Topic, c.reader.Config().GroupID).Observe(time.Since(start).Seconds())
		if err == nil {
			return nil
		}
		lastErr = err

		c.logger.Warn("handler failed, will retry",
			slog.String("event_type", env.EventType),
			slog.String("aggregate_id", env.AggregateID),
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxHandlerRetries),
		)

		if attempt < maxHandlerRetries {
			backoff := time.Duration(attempt) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, lastErr error, attempts int) {
	if c.dlq == nil {
		c.logger.Error("dropping poison message, no DLQ configured",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", lastErr.Error()),
		)
		return
	}
	if err := c.dlq.Publish(ctx, msg, lastErr, attempts); err != nil {
		c.logger.Error("failed to dead-letter message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

// Close closes the consumer. Safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}
