package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/CodeAtlas/internal/domain/wiki"
)

func (s *Store) ListWikiPages(ctx context.Context, repositoryID string) ([]wiki.Page, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, subsystem_id, repository_id, title, content, citations, toc, created_at, updated_at
		 FROM wiki_pages WHERE repository_id = $1 ORDER BY title`, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("list wiki pages: %w", err)
	}
	defer rows.Close()

	var pages []wiki.Page
	for rows.Next() {
		p, err := scanWikiPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *Store) GetWikiPageBySubsystem(ctx context.Context, subsystemID string) (*wiki.Page, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, subsystem_id, repository_id, title, content, citations, toc, created_at, updated_at
		 FROM wiki_pages WHERE subsystem_id = $1`, subsystemID)

	p, err := scanWikiPage(row)
	if err != nil {
		return nil, notFoundWrap(err, "get wiki page for subsystem %s", subsystemID)
	}
	return &p, nil
}

// UpsertWikiPage inserts a page or, when the subsystem already has one,
// replaces its content in place. One page per subsystem.
func (s *Store) UpsertWikiPage(ctx context.Context, page wiki.Page) (*wiki.Page, error) {
	citationsJSON, err := json.Marshal(orEmpty(page.Citations))
	if err != nil {
		return nil, fmt.Errorf("marshal citations: %w", err)
	}
	tocJSON, err := json.Marshal(orEmpty(page.TOC))
	if err != nil {
		return nil, fmt.Errorf("marshal toc: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO wiki_pages (subsystem_id, repository_id, title, content, citations, toc)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (subsystem_id) DO UPDATE
		 SET title = EXCLUDED.title, content = EXCLUDED.content,
		     citations = EXCLUDED.citations, toc = EXCLUDED.toc, updated_at = now()
		 RETURNING id, subsystem_id, repository_id, title, content, citations, toc, created_at, updated_at`,
		page.SubsystemID, page.RepositoryID, page.Title, page.Content, citationsJSON, tocJSON)

	p, err := scanWikiPage(row)
	if err != nil {
		return nil, fmt.Errorf("upsert wiki page: %w", err)
	}
	return &p, nil
}

func (s *Store) CountWikiPages(ctx context.Context, repositoryID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM wiki_pages WHERE repository_id = $1`, repositoryID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count wiki pages: %w", err)
	}
	return count, nil
}

func scanWikiPage(row scannable) (wiki.Page, error) {
	var p wiki.Page
	var citationsJSON, tocJSON []byte
	err := row.Scan(&p.ID, &p.SubsystemID, &p.RepositoryID, &p.Title, &p.Content,
		&citationsJSON, &tocJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if citationsJSON != nil {
		if err := json.Unmarshal(citationsJSON, &p.Citations); err != nil {
			return p, fmt.Errorf("unmarshal citations: %w", err)
		}
	}
	if tocJSON != nil {
		if err := json.Unmarshal(tocJSON, &p.TOC); err != nil {
			return p, fmt.Errorf("unmarshal toc: %w", err)
		}
	}
	return p, nil
}
