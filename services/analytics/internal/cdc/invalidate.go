package cdc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/proerror77/Nova-sub006/pkg/kafka"
)

// Invalidation names the feed a stored change affects. UserID targets one
// user's re-materialization; AuthorID removes that author's posts from every
// feed. Exactly one of the two is set.
type Invalidation struct {
	UserID   string
	AuthorID string
	Reason   string
}

// Key is the partition key: all notices for one feed share one partition.
func (i Invalidation) Key() string {
	if i.UserID != "" {
		return i.UserID
	}
	return i.AuthorID
}

// invalidatePayload is the wire shape the feed service decodes.
type invalidatePayload struct {
	UserID   string `json:"user_id,omitempty"`
	AuthorID string `json:"author_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// InvalidationFor derives the feed invalidation a stored record implies, so
// engagement surfaces in feeds without waiting for the periodic warmer. Likes,
// comments, and follows refresh the acting user's feed; a post deletion pulls
// the author's posts out of every feed. Post inserts and updates carry no
// targeted notice: followers pick them up on their next materialization.
func InvalidationFor(rec *Record) (Invalidation, bool) {
	state := rec.State()

	switch rec.Source.Table {
	case TableLikes:
		var img likeImage
		if err := json.Unmarshal(state, &img); err != nil || img.UserID == "" {
			return Invalidation{}, false
		}
		return Invalidation{UserID: img.UserID, Reason: "like"}, true

	case TableComments:
		var img commentImage
		if err := json.Unmarshal(state, &img); err != nil || img.AuthorID == "" {
			return Invalidation{}, false
		}
		return Invalidation{UserID: img.AuthorID, Reason: "comment"}, true

	case TableFollows:
		var img followImage
		if err := json.Unmarshal(state, &img); err != nil || img.FollowerID == "" {
			return Invalidation{}, false
		}
		return Invalidation{UserID: img.FollowerID, Reason: "follow"}, true

	case TablePosts:
		if rec.Op != OpDelete {
			return Invalidation{}, false
		}
		var img postImage
		if err := json.Unmarshal(state, &img); err != nil || img.AuthorID == "" {
			return Invalidation{}, false
		}
		return Invalidation{AuthorID: img.AuthorID, Reason: "post_deleted"}, true

	default:
		return Invalidation{}, false
	}
}

// InvalidationPublisher pushes derived invalidations toward the feed service.
type InvalidationPublisher interface {
	PublishInvalidation(ctx context.Context, inv Invalidation) error
}

// FeedNotifier publishes invalidation envelopes on the feed invalidation
// topic, keyed by the affected user or author.
type FeedNotifier struct {
	producer *kafka.Producer
}

// NewFeedNotifier creates a notifier over the given producer.
func NewFeedNotifier(producer *kafka.Producer) *FeedNotifier {
	return &FeedNotifier{producer: producer}
}

// PublishInvalidation wraps the invalidation in an envelope and publishes it.
func (n *FeedNotifier) PublishInvalidation(ctx context.Context, inv Invalidation) error {
	key := inv.Key()
	env, err := kafka.NewEnvelope(ctx, kafka.EventFeedInvalidate, "feed", key, "analytics-service", invalidatePayload{
		UserID:   inv.UserID,
		AuthorID: inv.AuthorID,
		Reason:   inv.Reason,
	})
	if err != nil {
		return fmt.Errorf("build invalidate envelope: %w", err)
	}
	return n.producer.PublishKeyed(ctx, kafka.TopicFeedInvalidate, key, env)
}
