package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/pkg/resilience"
)

// ErrBrokerUnavailable is returned when the producer circuit is open and the
// publish is rejected without touching the broker.
var ErrBrokerUnavailable = errors.New("kafka broker unavailable")

// messageWriter is the slice of kafka.Writer the producer needs. Tests
// substitute a stub.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerConfig holds Kafka producer configuration.
type ProducerConfig struct {
	Brokers      []string
	BatchSize    int
	BatchTimeout time.Duration
	MaxAttempts  int
}

// DefaultProducerConfig returns sensible defaults for the Kafka producer.
func DefaultProducerConfig(brokers []string) ProducerConfig {
	return ProducerConfig{
		Brokers:      brokers,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
	}
}

// Producer publishes envelopes with acks=all, snappy compression, and a
// circuit breaker in front of the broker. While the circuit is open every
// publish fails fast with ErrBrokerUnavailable.
type Producer struct {
	writer  messageWriter
	breaker *resilience.Breaker
	brokers []string
	logger  *slog.Logger
}

// NewProducer creates a Kafka producer guarded by the Kafka breaker preset.
func NewProducer(cfg ProducerConfig, logger *slog.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		Compression:  kafka.Snappy,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}

	preset := resilience.KafkaPreset("kafka-producer")

	return &Producer{
		writer:  w,
		breaker: resilience.NewBreaker(preset.Breaker, logger),
		brokers: cfg.Brokers,
		logger:  logger,
	}
}

// Publish sends an envelope to topic, keyed by aggregate id so events for the
// same aggregate stay ordered.
func (p *Producer) Publish(ctx context.Context, topic string, env *Envelope) error {
	return p.PublishKeyed(ctx, topic, env.AggregateID, env)
}

// PublishKeyed sends an envelope with an explicit partition key. Callers use
// CompositeKey when several aggregates must share an ordering domain.
func (p *Producer) PublishKeyed(ctx context.Context, topic, key string, env *Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(env.EventID)},
			{Key: "event_type", Value: []byte(env.EventType)},
			{Key: "source_service", Value: []byte(env.SourceService)},
		},
	}
	if env.CorrelationID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{
			Key: "correlation_id", Value: []byte(env.CorrelationID),
		})
	}

	start := time.Now()
	err = p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.writer.WriteMessages(ctx, msg)
	})
	publishDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	if err != nil {
		publishErrors.WithLabelValues(topic).Inc()
		if errors.Is(err, apperrors.ErrCircuitOpen) {
			return fmt.Errorf("%w: %w", ErrBrokerUnavailable, err)
		}
		p.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("topic", topic),
			slog.String("event_type", env.EventType),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish event to %s: %w", topic, err)
	}

	messagesPublished.WithLabelValues(topic).Inc()
	p.logger.DebugContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("event_type", env.EventType),
		slog.String("aggregate_id", env.AggregateID),
	)
	return nil
}

// Ping checks broker connectivity by dialing the configured brokers.
func (p *Producer) Ping(ctx context.Context) error {
	return PingBrokers(ctx, p.brokers)
}

// PingBrokers dials the given brokers and returns nil if at least one is
// reachable. Useful as a standalone health probe for consumer-only services.
func PingBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("kafka: no brokers configured")
	}

	var lastErr error
	for _, addr := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = conn.Brokers()
		_ = conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("kafka ping: all brokers unreachable: %w", lastErr)
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
