// Package cache defines the port for the reputation read cache.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-value cache keyed by record address. The TTL is advisory:
// the shared NATS KV tier expires entries at bucket granularity, and the
// in-process tier may evict early under memory pressure. Get reports a miss
// with ok=false and a nil error; errors are reserved for transport failures.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
