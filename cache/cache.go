// Package cache provides a key-value store with per-key expiration behind a single
// capability contract, with two interchangeable backends: an in-process table and
// Redis. The cache is a performance layer, not a source of truth: every operation
// is fail-soft. A disconnected store or a backend failure yields a negative/absent
// result, never an error that stops the pipeline.
//
// Values are serialized to JSON on Set and deserialized on Get for both backends,
// so callers can never mutate cached state through a live reference.
package cache

import (
	"context"
	"time"
)

// Store is the cache capability contract shared by both backends.
type Store interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// Set stores value under key with the given TTL (0 = no expiry).
	// Returns false if disconnected or on serialization/transport failure.
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool
	// Get unmarshals the value for key into dest (a pointer) and reports whether
	// a live entry was found.
	Get(ctx context.Context, key string, dest any) bool
	Del(ctx context.Context, key string) bool
	Exists(ctx context.Context, key string) bool

	Connected() bool
}

// New selects a backend by config enum. Unknown values fall back to the in-process
// store so the service can always run with zero external dependencies.
func New(backend, redisURL string) Store {
	switch backend {
	case "redis":
		return NewRedisStore(redisURL)
	default:
		return NewMemoryStore()
	}
}
