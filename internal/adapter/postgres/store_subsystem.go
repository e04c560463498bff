package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/CodeAtlas/internal/domain/analysis"
)

func (s *Store) ListSubsystems(ctx context.Context, repositoryID string) ([]analysis.Subsystem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, repository_id, name, description, type, complexity, files, entry_points, dependencies, created_at, updated_at
		 FROM subsystems WHERE repository_id = $1 ORDER BY name`, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("list subsystems: %w", err)
	}
	defer rows.Close()

	var subs []analysis.Subsystem
	for rows.Next() {
		sub, err := scanSubsystem(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) CreateSubsystem(ctx context.Context, sub analysis.Subsystem) (*analysis.Subsystem, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO subsystems (repository_id, name, description, type, complexity, files, entry_points, dependencies)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, repository_id, name, description, type, complexity, files, entry_points, dependencies, created_at, updated_at`,
		sub.RepositoryID, sub.Name, sub.Description, string(sub.Type), string(sub.Complexity),
		pgTextArray(sub.Files), pgTextArray(sub.EntryPoints), pgTextArray(sub.Dependencies))

	created, err := scanSubsystem(row)
	if err != nil {
		return nil, fmt.Errorf("create subsystem: %w", err)
	}
	return &created, nil
}

func (s *Store) UpdateSubsystem(ctx context.Context, sub analysis.Subsystem) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE subsystems
		 SET description = $2, type = $3, complexity = $4, files = $5, entry_points = $6, dependencies = $7, updated_at = now()
		 WHERE id = $1`,
		sub.ID, sub.Description, string(sub.Type), string(sub.Complexity),
		pgTextArray(sub.Files), pgTextArray(sub.EntryPoints), pgTextArray(sub.Dependencies))
	return execExpectOne(tag, err, "update subsystem %s", sub.ID)
}

func scanSubsystem(row scannable) (analysis.Subsystem, error) {
	var sub analysis.Subsystem
	err := row.Scan(&sub.ID, &sub.RepositoryID, &sub.Name, &sub.Description, &sub.Type, &sub.Complexity,
		&sub.Files, &sub.EntryPoints, &sub.Dependencies, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return sub, err
	}
	sub.Files = orEmpty(sub.Files)
	sub.EntryPoints = orEmpty(sub.EntryPoints)
	sub.Dependencies = orEmpty(sub.Dependencies)
	return sub, nil
}
