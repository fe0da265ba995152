package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting, shared across process
// restarts via Redis so REST throttling survives a crash/restart cycle.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking, used to guarantee at most one
// dependency-discovery batch is in flight across process instances.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams for fanning detected
// opportunities and trade results out to observers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// DependencyCache is the TTL-backed cache in front of the dependency
// classifier, keyed by the unordered pair of market IDs.
type DependencyCache interface {
	Get(ctx context.Context, marketA, marketB string) (Dependency, error) // ErrNoDependency on miss
	Set(ctx context.Context, dep Dependency, ttl time.Duration) error
	Has(ctx context.Context, marketA, marketB string) (bool, error)
}
