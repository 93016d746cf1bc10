package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// fanoutReadCount and fanoutBlock tune the consumer group read loop.
const (
	fanoutReadCount = 64
	fanoutBlock     = time.Second
)

// Broadcaster receives fanout payloads for local delivery. entryID is the
// conversation stream entry id, which clients persist as their delivery
// position.
type Broadcaster interface {
	Broadcast(conversationID, entryID string, payload []byte)
}

// FanoutConsumer reads the fanout stream through a consumer group and
// broadcasts each entry into the local hub, acking after the broadcast is
// handed off.
type FanoutConsumer struct {
	client   *redis.Client
	group    string
	consumer string
	hub      Broadcaster
	logger   *slog.Logger
}

// NewFanoutConsumer creates a fanout consumer. consumer names this instance
// inside the group; each replica needs a distinct one.
func NewFanoutConsumer(client *redis.Client, group, consumer string, hub Broadcaster, logger *slog.Logger) *FanoutConsumer {
	return &FanoutConsumer{
		client:   client,
		group:    group,
		consumer: consumer,
		hub:      hub,
		logger:   logger,
	}
}

// Start creates the group if needed and consumes until the context is
// canceled.
func (c *FanoutConsumer) Start(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, FanoutStream, c.group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create fanout group: %w", err)
	}

	c.logger.Info("fanout consumer started",
		slog.String("group", c.group),
		slog.String("consumer", c.consumer),
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.ErrorContext(ctx, "fanout poll failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// poll reads one batch of new entries and broadcasts them.
func (c *FanoutConsumer) poll(ctx context.Context) error {
	res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{FanoutStream, ">"},
		Count:    fanoutReadCount,
		Block:    fanoutBlock,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return err
	}

	for _, str := range res {
		for _, m := range str.Messages {
			c.deliver(ctx, m)
		}
	}
	return nil
}

// deliver broadcasts one entry and acks it. A malformed entry is acked too:
// redelivering it cannot make it well-formed.
func (c *FanoutConsumer) deliver(ctx context.Context, m redis.XMessage) {
	conversationID, _ := m.Values[fieldConversationID].(string)
	entryID, _ := m.Values[fieldEntryID].(string)
	payload, ok := m.Values[fieldMessage].(string)
	if conversationID == "" || !ok {
		c.logger.WarnContext(ctx, "malformed fanout entry",
			slog.String("entry_id", m.ID),
		)
	} else {
		c.hub.Broadcast(conversationID, entryID, []byte(payload))
		fanoutDelivered.Inc()
	}

	if err := c.client.XAck(ctx, FanoutStream, c.group, m.ID).Err(); err != nil {
		c.logger.ErrorContext(ctx, "fanout ack failed",
			slog.String("entry_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}
