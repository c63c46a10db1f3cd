// Package counter provides atomic increment-with-expiry stores backing the
// rate limiter.
package counter

import (
	"context"
	"time"
)

// Store is a shared, atomically incrementable key-value store. Increment sets
// the key's expiry to ttl only when it creates the key.
type Store interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// Supported backend names.
const (
	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendLibsql = "libsql"
	BackendMemory = "memory"
)
