package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/proerror77/Nova-sub006/services/messaging/internal/domain"
)

// Publisher adds messages to the delivery streams. The conversation stream is
// the replay source; the fanout stream feeds the consumer group. Both XADDs
// trim to MaxLen approximately so publication stays O(1).
type Publisher struct {
	client *redis.Client
	maxLen int64
	logger *slog.Logger
}

// NewPublisher creates a stream publisher.
func NewPublisher(client *redis.Client, maxLen int64, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, maxLen: maxLen, logger: logger}
}

// Publish adds the message to its conversation stream and mirrors it onto the
// fanout stream. The returned id is the conversation stream entry id. A fanout
// failure is logged and absorbed: replay still covers the entry, only the live
// push is late.
func (p *Publisher) Publish(ctx context.Context, msg *domain.Message) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode message %s: %w", msg.ID, err)
	}

	streamKey := ConversationStream(msg.ConversationID)
	entryID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{fieldMessage: data},
	}).Result()
	if err != nil {
		publishFailures.WithLabelValues("conversation").Inc()
		return "", fmt.Errorf("xadd conversation stream: %w", err)
	}
	publishedTotal.WithLabelValues("conversation").Inc()

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: FanoutStream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			fieldConversationID: msg.ConversationID,
			fieldStream:         streamKey,
			fieldEntryID:        entryID,
			fieldMessage:        data,
		},
	}).Err()
	if err != nil {
		publishFailures.WithLabelValues("fanout").Inc()
		p.logger.WarnContext(ctx, "fanout publish failed, live push degraded to replay",
			slog.String("conversation_id", msg.ConversationID),
			slog.String("entry_id", entryID),
			slog.String("error", err.Error()),
		)
		return entryID, nil
	}
	publishedTotal.WithLabelValues("fanout").Inc()

	return entryID, nil
}

// Replay reads the conversation stream entries strictly after lastID. An empty
// lastID replays the whole retained window.
func (p *Publisher) Replay(ctx context.Context, conversationID, lastID string) ([]Entry, error) {
	start := "-"
	if lastID != "" {
		// Exclusive range start, so the last delivered entry is not repeated.
		start = "(" + lastID
	}

	msgs, err := p.client.XRange(ctx, ConversationStream(conversationID), start, "+").Result()
	if err != nil {
		return nil, fmt.Errorf("xrange conversation stream: %w", err)
	}

	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		payload, ok := m.Values[fieldMessage].(string)
		if !ok {
			p.logger.WarnContext(ctx, "stream entry missing message field",
				slog.String("conversation_id", conversationID),
				slog.String("entry_id", m.ID),
			)
			continue
		}
		out = append(out, Entry{ID: m.ID, Payload: []byte(payload)})
	}
	return out, nil
}

// Entry is one replayable stream entry.
type Entry struct {
	ID      string
	Payload []byte
}
