package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQProducer publishes terminally failed messages to the dead-letter topic
// of their source topic, preserving the original key and value.
type DLQProducer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewDLQProducer creates a DLQ producer. DLQ writes are synchronous and
// unbatched: losing a dead letter loses the only record of the failure.
func NewDLQProducer(brokers []string, logger *slog.Logger) *DLQProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 100 * time.Millisecond,
		Async:        false,
		RequiredAcks: kafka.RequireAll,
	}

	return &DLQProducer{writer: w, logger: logger}
}

// buildDLQMessage constructs the dead-letter message: original key/value plus
// provenance headers.
func buildDLQMessage(originalMsg kafka.Message, failureReason string, attempts int) kafka.Message {
	headers := make([]kafka.Header, 0, len(originalMsg.Headers)+3)
	headers = append(headers, originalMsg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "x-original-topic", Value: []byte(originalMsg.Topic)},
		kafka.Header{Key: "x-failure-reason", Value: []byte(failureReason)},
		kafka.Header{Key: "x-attempts", Value: []byte(strconv.Itoa(attempts))},
	)

	return kafka.Message{
		Topic:   DLQTopic(originalMsg.Topic),
		Key:     originalMsg.Key,
		Value:   originalMsg.Value,
		Headers: headers,
	}
}

// Publish sends a failed message to the DLQ topic of its source topic.
func (d *DLQProducer) Publish(ctx context.Context, originalMsg kafka.Message, lastErr error, attempts int) error {
	reason := "unknown"
	if lastErr != nil {
		reason = lastErr.Error()
	}

	dlqMsg := buildDLQMessage(originalMsg, reason, attempts)

	if err := d.writer.WriteMessages(ctx, dlqMsg); err != nil {
		d.logger.ErrorContext(ctx, "failed to publish message to DLQ",
			slog.String("dlq_topic", dlqMsg.Topic),
			slog.String("original_topic", originalMsg.Topic),
			slog.Int("partition", originalMsg.Partition),
			slog.Int64("offset", originalMsg.Offset),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish to DLQ %s: %w", dlqMsg.Topic, err)
	}

	dlqPublished.WithLabelValues(originalMsg.Topic).Inc()
	d.logger.WarnContext(ctx, "message sent to DLQ",
		slog.String("dlq_topic", dlqMsg.Topic),
		slog.String("original_topic", originalMsg.Topic),
		slog.Int("partition", originalMsg.Partition),
		slog.Int64("offset", originalMsg.Offset),
		slog.String("failure_reason", reason),
		slog.Int("attempts", attempts),
	)
	return nil
}

// Close closes the DLQ producer.
func (d *DLQProducer) Close() error {
	return d.writer.Close()
}
