// Package analysis defines the analysis job and subsystem domain entities.
package analysis

import "time"

// Status represents the lifecycle state of an analysis job.
// Transitions only move forward: pending → in_progress → completed|failed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Progress checkpoints reached as the pipeline advances through its phases.
const (
	ProgressPickedUp   = 10  // job moved to in_progress
	ProgressDiscovered = 30  // file list built and filtered
	ProgressClassified = 70  // subsystems classified by the reasoning service
	ProgressDone       = 100 // subsystems persisted, repository stamped
)

// Job is one execution of the analysis pipeline for a repository.
type Job struct {
	ID           string     `json:"id"`
	RepositoryID string     `json:"repository_id"`
	Status       Status     `json:"status"`
	Progress     int        `json:"progress"`
	Result       *Result    `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Result summarizes a completed analysis.
type Result struct {
	SubsystemCount int    `json:"subsystem_count"`
	Summary        string `json:"summary,omitempty"`
}
