// Package cache provides the small key-value surface the presence tracker
// and the notification debounce need: string values with TTLs and a batch
// get. Two implementations exist: Redis for multi-replica deployments and
// an in-process map for single-replica setups and tests.
package cache

import (
	"context"
	"time"
)

// Cache is the narrow KV contract used by presence and notification
// debouncing. A missing key is reported as ok=false, not as an error;
// errors mean the backend itself failed.
type Cache interface {
	// Set stores val under key with the given TTL (0 = no expiry).
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Del removes the key; deleting a missing key is not an error.
	Del(ctx context.Context, key string) error
	// Expire resets the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// MGet returns one entry per key; missing keys yield ok=false.
	MGet(ctx context.Context, keys ...string) ([]Value, error)
}

// Value is one MGet result slot.
type Value struct {
	Val string
	OK  bool
}
