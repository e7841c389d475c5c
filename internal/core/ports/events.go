package ports

import (
	"context"
	"time"

	"github.com/medistore/medistore-api/internal/core/domain"
)

// EventSink accepts committed order events for asynchronous delivery.
type EventSink interface {
	Enqueue(event domain.OrderEvent)
}

// EventPublisher delivers a single order event to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}

// IdempotencyStore remembers which order a checkout idempotency key produced.
type IdempotencyStore interface {
	// Reserve claims key for a new checkout. When the key was already used,
	// reserved is false and orderID holds the order it produced (empty while
	// the first request is still running).
	Reserve(ctx context.Context, scope, key string, ttl time.Duration) (orderID string, reserved bool, err error)
	// Complete binds a reserved key to the order it produced.
	Complete(ctx context.Context, scope, key, orderID string, ttl time.Duration) error
	// Release frees a reservation after a failed checkout.
	Release(ctx context.Context, scope, key string) error
}
