package messaging

import (
	"context"
)

// Broker defines the interface for message brokers. The document store
// publishes its change feed through one; subscription watchers consume
// from one. Implementations must deliver every published message to
// every active subscriber of the channel (fan-out, no queueing).
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	// Subscribe returns a channel of raw payloads. The channel closes
	// when ctx is cancelled or the broker shuts down.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	// HealthCheck reports whether the broker can currently reach its
	// backend; the readiness probe calls it.
	HealthCheck(ctx context.Context) error
	Close() error
}
