// Package provider abstracts the platform push gateways.
package provider

import (
	"context"

	"github.com/proerror77/Nova-sub006/services/notification/internal/domain"
)

// Provider delivers one push job to a platform gateway.
type Provider interface {
	Name() string
	Send(ctx context.Context, job *domain.Job) error
}

// Registry maps a platform to its provider.
type Registry map[string]Provider

// For returns the provider for a platform.
func (r Registry) For(platform string) (Provider, bool) {
	p, ok := r[platform]
	return p, ok
}
