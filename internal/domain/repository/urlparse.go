package repository

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Ref identifies a repository by its owner and name.
type Ref struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// Canonical returns the canonical HTTPS URL for the repository. This is the
// form stored in the repositories table and matched on re-submission, so
// https/ssh/.git spellings of the same repository collapse to one row.
func (r Ref) Canonical() string {
	return "https://github.com/" + r.Owner + "/" + r.Name
}

// ParseRepoURL extracts the owner and name from a GitHub repository URL.
// Supports HTTPS URLs (https://github.com/org/repo) and SSH URLs
// (git@github.com:org/repo.git). Non-GitHub hosts are rejected since both
// the content source and the citation URL format are GitHub's.
func ParseRepoURL(rawURL string) (Ref, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Ref{}, fmt.Errorf("empty URL")
	}

	// SSH format: git@host:owner/repo.git
	if strings.HasPrefix(rawURL, "git@") {
		return parseSSHURL(rawURL)
	}

	// HTTPS format: https://host/owner/repo[.git]
	if strings.HasPrefix(rawURL, "https://") || strings.HasPrefix(rawURL, "http://") {
		return parseHTTPSURL(rawURL)
	}

	return Ref{}, fmt.Errorf("unsupported URL scheme: must start with https://, http://, or git@")
}

func parseSSHURL(rawURL string) (Ref, error) {
	// git@github.com:owner/repo.git
	withoutPrefix := strings.TrimPrefix(rawURL, "git@")
	colonIdx := strings.Index(withoutPrefix, ":")
	if colonIdx < 0 {
		return Ref{}, fmt.Errorf("invalid SSH URL: missing colon separator")
	}

	host := withoutPrefix[:colonIdx]
	if err := checkHost(host); err != nil {
		return Ref{}, err
	}

	pathPart := strings.TrimSuffix(withoutPrefix[colonIdx+1:], ".git")
	parts := strings.SplitN(pathPart, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Ref{}, fmt.Errorf("invalid SSH URL: expected owner/repo after host")
	}

	return Ref{Owner: parts[0], Name: parts[1]}, nil
}

func parseHTTPSURL(rawURL string) (Ref, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Host == "" {
		return Ref{}, fmt.Errorf("invalid URL: missing host")
	}
	if err := checkHost(u.Hostname()); err != nil {
		return Ref{}, err
	}

	// Clean the path: /owner/repo[.git]
	p := strings.TrimSuffix(path.Clean(u.Path), ".git")
	p = strings.Trim(p, "/")

	parts := strings.SplitN(p, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Ref{}, fmt.Errorf("invalid URL: expected /owner/repo path")
	}

	return Ref{Owner: parts[0], Name: parts[1]}, nil
}

func checkHost(host string) error {
	if !strings.EqualFold(host, "github.com") {
		return fmt.Errorf("unsupported host %q: only github.com repositories are supported", host)
	}
	return nil
}
