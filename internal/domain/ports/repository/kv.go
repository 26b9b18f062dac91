package repository

import (
	"context"
	"time"
)

// KVStore is the port for the namespaced cache backend. Implementations map
// misses to domain.ErrCacheMiss. Every write carries a TTL; implementations
// never persist an entry without one.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Del returns the number of keys actually removed.
	Del(ctx context.Context, keys ...string) (int64, error)
	// IncrBy is atomic per key. A missing key counts from zero.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Keys matches glob patterns, e.g. "blueprint:*".
	Keys(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
