package domain

import (
	"context"
	"time"
)

// FeatureCache memoizes feature vectors keyed by (team, opponent, match date).
type FeatureCache interface {
	Get(ctx context.Context, team, opponent string, date time.Time) (FeatureVector, error)
	Set(ctx context.Context, fv FeatureVector) error
	Flush(ctx context.Context) (int64, error)
}

// LiveMatchCache mirrors live match state for readers outside the owning process.
type LiveMatchCache interface {
	Set(ctx context.Context, state LiveMatchState) error
	Get(ctx context.Context, matchID string) (LiveMatchState, error)
	Delete(ctx context.Context, matchID string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
