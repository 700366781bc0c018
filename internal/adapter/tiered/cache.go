// Package tiered layers the process-local status cache over the shared
// NATS key-value bucket.
package tiered

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/Herald/internal/port/cache"
)

var _ cache.Cache = (*Cache)(nil)

// Cache reads through local to shared and writes to both. The shared
// level is best effort: its failures are logged and a lookup that cannot
// reach it reports a miss, so a NATS outage shrinks status visibility to
// this process instead of failing sends.
type Cache struct {
	local    cache.Cache
	shared   cache.Cache
	localTTL time.Duration
}

// New returns a Cache. Entries copied from shared into local after a
// local miss live for localTTL.
func New(local, shared cache.Cache, localTTL time.Duration) *Cache {
	return &Cache{local: local, shared: shared, localTTL: localTTL}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if val, ok, err := c.local.Get(ctx, key); err != nil || ok {
		return val, ok, err
	}

	val, ok, err := c.shared.Get(ctx, key)
	if err != nil {
		c.sharedFailed(ctx, "get", key, err)
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}
	_ = c.local.Set(ctx, key, val, c.localTTL)
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if err := c.shared.Set(ctx, key, value, ttl); err != nil {
		c.sharedFailed(ctx, "set", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}
	if err := c.shared.Delete(ctx, key); err != nil {
		c.sharedFailed(ctx, "delete", key, err)
	}
	return nil
}

func (c *Cache) sharedFailed(ctx context.Context, op, key string, err error) {
	slog.WarnContext(ctx, "shared status cache unavailable", "op", op, "key", key, "error", err)
}
