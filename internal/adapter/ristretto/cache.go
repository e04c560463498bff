// Package ristretto implements the cache port with an in-process
// dgraph-io/ristretto cache. It fronts the GitHub source so repeated
// classification and wiki runs do not refetch the same blobs.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	// avgEntryBytes approximates one cached source file. Fetched blobs
	// land mostly between 2 and 60 KB once the per-file limits apply.
	avgEntryBytes = 8 << 10

	// minCounters keeps ristretto's admission sketch useful for very
	// small cache budgets.
	minCounters = 1 << 10
)

// Cache holds file contents keyed by "owner/repo/ref/path".
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a cache bounded at maxCostBytes of stored values.
func New(maxCostBytes int64) (*Cache, error) {
	// Ristretto wants ~10x the expected item count for its frequency
	// counters.
	counters := maxCostBytes / avgEntryBytes * 10
	if counters < minCounters {
		counters = minCounters
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

// Get returns the cached value for key, reporting whether it was
// present.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores value under key for the given TTL, costed at its size.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cost := int64(len(value))
	if cost == 0 {
		// Empty files still occupy an admission slot.
		cost = 1
	}
	c.c.SetWithTTL(key, value, cost, ttl)
	return nil
}

// Delete drops key from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Wait blocks until buffered Sets have been applied. Ristretto admits
// writes asynchronously, so a Get immediately after Set may miss
// without it.
func (c *Cache) Wait() {
	c.c.Wait()
}

// Close stops the cache's background goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
