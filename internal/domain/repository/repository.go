// Package repository defines the source repository entity and URL handling.
package repository

import "time"

// Repository is the identity record for an analyzed source project.
// URL is canonical and unique; AnalyzedAt stays nil until the first
// analysis completes and is refreshed on every re-analysis.
type Repository struct {
	ID              string     `json:"id"`
	URL             string     `json:"url"`
	Owner           string     `json:"owner"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	PrimaryLanguage string     `json:"primary_language,omitempty"`
	Stars           int        `json:"stars"`
	AnalyzedAt      *time.Time `json:"analyzed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Analyzed reports whether the repository has completed at least one analysis.
func (r *Repository) Analyzed() bool {
	return r.AnalyzedAt != nil
}
