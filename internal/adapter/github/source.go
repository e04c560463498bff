// Package github implements the repository source port against the
// GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"

	"github.com/Strob0t/CodeAtlas/internal/domain"
	"github.com/Strob0t/CodeAtlas/internal/port/reposource"
)

// Source reads repository metadata, trees, and file content from GitHub.
// An empty token works for public repositories at a reduced rate limit.
type Source struct {
	client *gh.Client
}

// NewSource creates a GitHub source. The timeout bounds every API call.
func NewSource(token string, timeout time.Duration) *Source {
	hc := &http.Client{Timeout: timeout}
	client := gh.NewClient(hc)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &Source{client: client}
}

// SetBaseURL points the client at a different API root. Used by tests.
func (s *Source) SetBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSuffix(raw, "/") + "/")
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	s.client.BaseURL = u
	return nil
}

// GetRepoInfo fetches repository metadata.
func (s *Source) GetRepoInfo(ctx context.Context, owner, repo string) (*reposource.RepoInfo, error) {
	r, _, err := s.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, mapError("get repository", err)
	}

	return &reposource.RepoInfo{
		Description:     r.GetDescription(),
		PrimaryLanguage: r.GetLanguage(),
		Stars:           r.GetStargazersCount(),
	}, nil
}

// ListFiles returns every blob path in the default branch tree. HEAD
// resolves server-side, so no extra call is needed to find the branch.
func (s *Source) ListFiles(ctx context.Context, owner, repo string) ([]reposource.FileInfo, error) {
	tree, _, err := s.client.Git.GetTree(ctx, owner, repo, "HEAD", true)
	if err != nil {
		return nil, mapError("get tree", err)
	}

	if tree.GetTruncated() {
		slog.Warn("github tree listing truncated", "owner", owner, "repo", repo)
	}

	files := make([]reposource.FileInfo, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		files = append(files, reposource.FileInfo{
			Path: entry.GetPath(),
			Size: int64(entry.GetSize()),
		})
	}
	return files, nil
}

// GetFileContent returns the decoded text content of one file on the
// default branch.
func (s *Source) GetFileContent(ctx context.Context, owner, repo, path string) (string, error) {
	file, _, _, err := s.client.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return "", mapError("get contents", err)
	}
	if file == nil {
		return "", fmt.Errorf("%w: %s is not a file", domain.ErrNotFound, path)
	}

	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode content of %s: %w", path, err)
	}
	return content, nil
}

// mapError translates go-github errors to domain sentinels.
func mapError(op string, err error) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: github %s: rate limit resets at %s", domain.ErrRateLimited, op, rateErr.Rate.Reset.Time.Format(time.RFC3339))
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: github %s: secondary rate limit", domain.ErrRateLimited, op)
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: github %s: %s", domain.ErrNotFound, op, ghErr.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: github %s: %s", domain.ErrRateLimited, op, ghErr.Message)
		}
		return fmt.Errorf("%w: github %s: status %d: %s", domain.ErrUnavailable, op, ghErr.Response.StatusCode, ghErr.Message)
	}

	return fmt.Errorf("%w: github %s: %v", domain.ErrUnavailable, op, err)
}
