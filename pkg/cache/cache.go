// Package cache is a bounded in-process byte cache backed by ristretto.
package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a cache holding at most maxCostBytes of values.
func New(maxCostBytes int64) (*Cache, error) {
	if maxCostBytes <= 0 {
		maxCostBytes = 8 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool) {
	return c.c.Get(key)
}

// Set stores value for ttl. Writes are buffered; Wait flushes them.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) bool {
	return c.c.SetWithTTL(key, value, int64(len(value)), ttl)
}

func (c *Cache) Wait() {
	c.c.Wait()
}

func (c *Cache) Delete(_ context.Context, key string) {
	c.c.Del(key)
}

func (c *Cache) Close() {
	c.c.Close()
}
