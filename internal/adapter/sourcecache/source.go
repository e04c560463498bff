// Package sourcecache wraps a repository source with an in-process
// content cache. File content is immutable for the lifetime of an
// analysis run, so repeated fetches across classification and page
// generation hit the cache instead of the provider's rate limit.
package sourcecache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/CodeAtlas/internal/port/cache"
	"github.com/Strob0t/CodeAtlas/internal/port/reposource"
)

// Source decorates a reposource.Source with content caching. Metadata
// and tree listings are fetched once per job and pass through uncached.
type Source struct {
	inner reposource.Source
	cache cache.Cache
	ttl   time.Duration
}

// New creates a caching source decorator.
func New(inner reposource.Source, c cache.Cache, ttl time.Duration) *Source {
	return &Source{inner: inner, cache: c, ttl: ttl}
}

// GetRepoInfo passes through to the inner source.
func (s *Source) GetRepoInfo(ctx context.Context, owner, repo string) (*reposource.RepoInfo, error) {
	return s.inner.GetRepoInfo(ctx, owner, repo)
}

// ListFiles passes through to the inner source.
func (s *Source) ListFiles(ctx context.Context, owner, repo string) ([]reposource.FileInfo, error) {
	return s.inner.ListFiles(ctx, owner, repo)
}

// GetFileContent returns cached content when present, otherwise fetches
// from the inner source and caches the result. Cache failures are
// logged and never fail the read.
func (s *Source) GetFileContent(ctx context.Context, owner, repo, path string) (string, error) {
	key := contentKey(owner, repo, path)

	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return string(data), nil
	}

	content, err := s.inner.GetFileContent(ctx, owner, repo, path)
	if err != nil {
		return "", err
	}

	if err := s.cache.Set(ctx, key, []byte(content), s.ttl); err != nil {
		slog.Warn("source cache set failed", "key", key, "error", err)
	}
	return content, nil
}

func contentKey(owner, repo, path string) string {
	return fmt.Sprintf("src:%s/%s@%s", owner, repo, path)
}
