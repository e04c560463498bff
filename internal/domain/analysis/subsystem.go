package analysis

import (
	"errors"
	"strings"
	"time"
)

// Type categorizes a subsystem by its role in the repository.
type Type string

const (
	TypeFeature        Type = "feature"
	TypeService        Type = "service"
	TypeUtility        Type = "utility"
	TypeInfrastructure Type = "infrastructure"
	TypeCLI            Type = "cli"
	TypeAPI            Type = "api"
	TypeFrontend       Type = "frontend"
	TypeBackend        Type = "backend"
)

// NormalizeType maps a free-form type string onto a known Type.
// Unknown values fall back to TypeFeature; the caller decides whether
// that fallback is worth a warning.
func NormalizeType(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeFeature, TypeService, TypeUtility, TypeInfrastructure,
		TypeCLI, TypeAPI, TypeFrontend, TypeBackend:
		return t, true
	}
	return TypeFeature, false
}

// Complexity grades how involved a subsystem is.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// NormalizeComplexity maps a free-form complexity string onto a known
// Complexity, falling back to medium.
func NormalizeComplexity(s string) (Complexity, bool) {
	c := Complexity(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return c, true
	}
	return ComplexityMedium, false
}

// Subsystem is a classified component of a repository. Name is the natural
// key for merge-on-re-analysis within a repository: re-classification
// updates matching names in place and never deletes unmatched rows.
type Subsystem struct {
	ID           string     `json:"id"`
	RepositoryID string     `json:"repository_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Type         Type       `json:"type"`
	Complexity   Complexity `json:"complexity"`
	Files        []string   `json:"files,omitempty"`
	EntryPoints  []string   `json:"entry_points,omitempty"`
	Dependencies []string   `json:"dependencies,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ClassificationResult is the structured output parsed from the reasoning
// service's subsystem classification response.
type ClassificationResult struct {
	Summary    string       `json:"summary"`
	Subsystems []Descriptor `json:"subsystems"`
}

// Descriptor describes a single subsystem in a classification response.
type Descriptor struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Type         string   `json:"type"`
	Complexity   string   `json:"complexity"`
	Files        []string `json:"files"`
	EntryPoints  []string `json:"entry_points"`
	Dependencies []string `json:"dependencies"`
}

// ValidateResult checks that a ClassificationResult is structurally valid.
// Enum drift is handled later by normalization; this only rejects shapes
// that cannot be used at all.
func (r *ClassificationResult) ValidateResult() error {
	if len(r.Subsystems) == 0 {
		return errors.New("at least one subsystem is required")
	}
	for i := range r.Subsystems {
		if strings.TrimSpace(r.Subsystems[i].Name) == "" {
			return errors.New("subsystem name is required")
		}
	}
	return nil
}
