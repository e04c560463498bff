// Package reposource defines the repository content source port (interface).
package reposource

import "context"

// FileInfo is one entry of a repository file listing.
type FileInfo struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// RepoInfo carries the hosting-provider metadata the pipeline records
// on the repository row.
type RepoInfo struct {
	Description     string `json:"description"`
	PrimaryLanguage string `json:"primary_language"`
	Stars           int    `json:"stars"`
}

// Source is the port interface for reading repository structure and file
// content from a hosting provider.
//
// Implementations translate upstream failures to the domain sentinels:
// domain.ErrNotFound for a missing repository or path,
// domain.ErrRateLimited when the provider throttles, and
// domain.ErrUnavailable for other upstream failures.
type Source interface {
	// GetRepoInfo fetches repository metadata.
	GetRepoInfo(ctx context.Context, owner, repo string) (*RepoInfo, error)

	// ListFiles returns every file path in the default branch tree.
	// Relevance filtering is the caller's concern, not the source's.
	ListFiles(ctx context.Context, owner, repo string) ([]FileInfo, error)

	// GetFileContent returns the decoded text content of one file.
	GetFileContent(ctx context.Context, owner, repo, path string) (string, error)
}
