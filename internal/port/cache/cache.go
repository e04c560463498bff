// Package cache defines the port for byte caches that front slow
// sources, such as the GitHub content fetcher.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys. Implementations
// choose their own eviction; the TTL is an upper bound on retention,
// not a guarantee.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
