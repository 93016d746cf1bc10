// Package channel abstracts the synchronous dispatch channels (email, in-app).
// Push is not a channel sender; it goes through the durable job queue.
package channel

import "context"

// Delivery is one channel delivery request.
type Delivery struct {
	UserID string
	Title  string
	Body   string
}

// Sender delivers through one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, d Delivery) error
}
