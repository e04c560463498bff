// Package service implements business logic on top of ports.
package service

import (
	"context"

	"github.com/Strob0t/CodeAtlas/internal/domain/analysis"
	"github.com/Strob0t/CodeAtlas/internal/domain/repository"
	"github.com/Strob0t/CodeAtlas/internal/port/database"
)

// RepositoryService serves repository records and their subsystems.
type RepositoryService struct {
	store database.Store
}

// NewRepositoryService creates a new RepositoryService.
func NewRepositoryService(store database.Store) *RepositoryService {
	return &RepositoryService{store: store}
}

// List returns all known repositories.
func (s *RepositoryService) List(ctx context.Context) ([]repository.Repository, error) {
	return s.store.ListRepositories(ctx)
}

// Get returns a repository by ID.
func (s *RepositoryService) Get(ctx context.Context, id string) (*repository.Repository, error) {
	return s.store.GetRepository(ctx, id)
}

// ListSubsystems returns the classified subsystems of a repository.
func (s *RepositoryService) ListSubsystems(ctx context.Context, repositoryID string) ([]analysis.Subsystem, error) {
	if _, err := s.store.GetRepository(ctx, repositoryID); err != nil {
		return nil, err
	}
	return s.store.ListSubsystems(ctx, repositoryID)
}
