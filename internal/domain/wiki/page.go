// Package wiki defines the generated documentation model: pages, their
// citations anchored to file/line ranges, and table-of-contents entries.
package wiki

import (
	"errors"
	"strings"
	"time"
)

// Page is the generated documentation for exactly one subsystem. A
// subsystem has at most one page; forced re-generation updates the
// existing row in place.
type Page struct {
	ID           string     `json:"id"`
	SubsystemID  string     `json:"subsystem_id"`
	RepositoryID string     `json:"repository_id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Citations    []Citation `json:"citations,omitempty"`
	TOC          []TOCEntry `json:"table_of_contents,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Citation anchors a documentation claim to a concrete file and line
// range. URL is always derived locally from the other fields, never
// taken from upstream output.
type Citation struct {
	Text      string `json:"text"`
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line,omitempty"`
	URL       string `json:"url,omitempty"`
	Context   string `json:"context,omitempty"`
}

// ValidRange reports whether the citation's line range is usable:
// non-negative bounds with start <= end.
func (c Citation) ValidRange() bool {
	return c.StartLine >= 0 && c.EndLine >= c.StartLine
}

// TOCEntry is one table-of-contents row for a page.
type TOCEntry struct {
	Title  string `json:"title"`
	Anchor string `json:"anchor"`
	Level  int    `json:"level"`
}

// GenerationResult is the structured output expected from the reasoning
// service for a single page.
type GenerationResult struct {
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Citations []Citation `json:"citations"`
	TOC       []TOCEntry `json:"table_of_contents"`
}

// ValidateResult checks the reasoning output for the fields a page
// cannot exist without. Citations and TOC entries are optional; bad
// citations are filtered by the caller rather than failing the page.
func (r *GenerationResult) ValidateResult() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("page title is required")
	}
	if strings.TrimSpace(r.Content) == "" {
		return errors.New("page content is required")
	}
	return nil
}
