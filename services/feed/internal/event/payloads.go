// Package event defines the payloads the feed service consumes.
package event

// InvalidatePayload targets a feed invalidation. Exactly one of UserID or
// AuthorID is expected: a user invalidation re-materializes that user's feed,
// an author invalidation removes the author's posts from every feed.
type InvalidatePayload struct {
	UserID   string `json:"user_id,omitempty"`
	AuthorID string `json:"author_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
