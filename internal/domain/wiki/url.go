package wiki

import (
	"fmt"
	"strings"
)

const maxPathLen = 512

// BuildFileURL returns the public view URL for a file/line range. The
// format is stable and persisted, so it must not change shape: a single
// line renders as #L{start}, a range as #L{start}-L{end}.
func BuildFileURL(owner, repo, filePath string, start, end int) string {
	if end != start {
		return fmt.Sprintf("https://github.com/%s/%s/blob/main/%s#L%d-L%d", owner, repo, filePath, start, end)
	}
	return fmt.Sprintf("https://github.com/%s/%s/blob/main/%s#L%d", owner, repo, filePath, start)
}

// WellFormedPath reports whether a repository-relative path is safe to
// fetch: no wildcards, no parent-directory traversal, no absolute paths,
// and a bounded length. Paths come from reasoning output, so anything
// suspicious is rejected rather than cleaned up.
func WellFormedPath(p string) bool {
	if p == "" || len(p) > maxPathLen {
		return false
	}
	if strings.ContainsAny(p, "*?[]") {
		return false
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return false
	}
	for _, seg := range strings.Split(strings.ReplaceAll(p, "\\", "/"), "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}
