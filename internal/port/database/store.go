// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/CodeAtlas/internal/domain/analysis"
	"github.com/Strob0t/CodeAtlas/internal/domain/repository"
	"github.com/Strob0t/CodeAtlas/internal/domain/wiki"
)

// Store is the port interface for database operations.
//
// Status-changing job methods enforce the forward-only state machine at
// the storage layer: a guard that does not match returns
// domain.ErrConflict so callers can treat redelivered or duplicate
// transitions as no-ops.
type Store interface {
	// Repositories
	ListRepositories(ctx context.Context) ([]repository.Repository, error)
	GetRepository(ctx context.Context, id string) (*repository.Repository, error)
	GetRepositoryByURL(ctx context.Context, url string) (*repository.Repository, error)
	CreateRepository(ctx context.Context, repo repository.Repository) (*repository.Repository, error)
	UpdateRepositoryMeta(ctx context.Context, id, description, primaryLanguage string, stars int) error
	MarkRepositoryAnalyzed(ctx context.Context, id string) error

	// Analysis jobs
	CreateJob(ctx context.Context, job analysis.Job) (*analysis.Job, error)
	GetJob(ctx context.Context, id string) (*analysis.Job, error)
	StartJob(ctx context.Context, id string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error
	CompleteJob(ctx context.Context, id string, result analysis.Result) error
	FailJob(ctx context.Context, id string, errMsg string) error

	// Subsystems
	ListSubsystems(ctx context.Context, repositoryID string) ([]analysis.Subsystem, error)
	CreateSubsystem(ctx context.Context, sub analysis.Subsystem) (*analysis.Subsystem, error)
	UpdateSubsystem(ctx context.Context, sub analysis.Subsystem) error

	// Wiki pages
	ListWikiPages(ctx context.Context, repositoryID string) ([]wiki.Page, error)
	GetWikiPageBySubsystem(ctx context.Context, subsystemID string) (*wiki.Page, error)
	UpsertWikiPage(ctx context.Context, page wiki.Page) (*wiki.Page, error)
	CountWikiPages(ctx context.Context, repositoryID string) (int, error)
}
