package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/CodeAtlas/internal/domain"
	"github.com/Strob0t/CodeAtlas/internal/domain/repository"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Repositories ---

func (s *Store) ListRepositories(ctx context.Context) ([]repository.Repository, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, url, owner, name, description, primary_language, stars, analyzed_at, created_at, updated_at
		 FROM repositories ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []repository.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

func (s *Store) GetRepository(ctx context.Context, id string) (*repository.Repository, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, url, owner, name, description, primary_language, stars, analyzed_at, created_at, updated_at
		 FROM repositories WHERE id = $1`, id)

	r, err := scanRepository(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get repository %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get repository %s: %w", id, err)
	}
	return &r, nil
}

func (s *Store) GetRepositoryByURL(ctx context.Context, url string) (*repository.Repository, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, url, owner, name, description, primary_language, stars, analyzed_at, created_at, updated_at
		 FROM repositories WHERE url = $1`, url)

	r, err := scanRepository(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get repository by url %s: %w", url, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get repository by url %s: %w", url, err)
	}
	return &r, nil
}

func (s *Store) CreateRepository(ctx context.Context, repo repository.Repository) (*repository.Repository, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO repositories (url, owner, name, description, primary_language, stars)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, url, owner, name, description, primary_language, stars, analyzed_at, created_at, updated_at`,
		repo.URL, repo.Owner, repo.Name, repo.Description, repo.PrimaryLanguage, repo.Stars)

	r, err := scanRepository(row)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}
	return &r, nil
}

func (s *Store) UpdateRepositoryMeta(ctx context.Context, id, description, primaryLanguage string, stars int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE repositories SET description = $2, primary_language = $3, stars = $4, updated_at = now()
		 WHERE id = $1`,
		id, description, primaryLanguage, stars)
	return execExpectOne(tag, err, "update repository meta %s", id)
}

func (s *Store) MarkRepositoryAnalyzed(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE repositories SET analyzed_at = now(), updated_at = now() WHERE id = $1`, id)
	return execExpectOne(tag, err, "mark repository analyzed %s", id)
}

func scanRepository(row scannable) (repository.Repository, error) {
	var r repository.Repository
	err := row.Scan(&r.ID, &r.URL, &r.Owner, &r.Name, &r.Description, &r.PrimaryLanguage,
		&r.Stars, &r.AnalyzedAt, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}
