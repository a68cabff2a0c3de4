// Package tiered layers an in-process cache over a shared remote one.
// Reputation reads hit L1 first; an L2 hit backfills L1 so repeated lookups
// for a hot agent stay local even across engine replicas.
package tiered

import (
	"context"
	"time"

	"github.com/Dexploarer/ghostspeak-go/internal/port/cache"
)

// Cache combines an L1 (in-process) and L2 (remote) cache.
type Cache struct {
	l1       cache.Cache
	l2       cache.Cache
	l1Expire time.Duration
}

// New creates a tiered cache. l1Expire bounds how long L2 backfill entries
// live in L1.
func New(l1, l2 cache.Cache, l1Expire time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1Expire: l1Expire}
}

// Get checks L1, then L2, backfilling L1 on an L2 hit.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		_ = c.l1.Set(ctx, key, val, c.l1Expire)
		return val, true, nil
	}
	return nil, false, nil
}

// Set writes L2 first so L1 never holds a value the shared tier lost.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.l1.Set(ctx, key, value, ttl)
}

// Delete invalidates L2 before L1: the reverse order would let a concurrent
// reader backfill the stale L2 value into a freshly cleared L1.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l2.Delete(ctx, key); err != nil {
		return err
	}
	return c.l1.Delete(ctx, key)
}
