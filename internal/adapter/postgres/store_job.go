package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/CodeAtlas/internal/domain"
	"github.com/Strob0t/CodeAtlas/internal/domain/analysis"
)

// Job status transitions run through guarded UPDATEs: the WHERE clause
// names the expected current status, and zero affected rows surfaces as
// domain.ErrConflict. Duplicate queue deliveries and concurrent workers
// race on the same guard, so only one transition ever wins.

func (s *Store) CreateJob(ctx context.Context, job analysis.Job) (*analysis.Job, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO analysis_jobs (id, repository_id, status, progress)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, repository_id, status, progress, result, error, started_at, completed_at, created_at`,
		job.ID, job.RepositoryID, string(analysis.StatusPending), 0)

	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return &j, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*analysis.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, repository_id, status, progress, result, error, started_at, completed_at, created_at
		 FROM analysis_jobs WHERE id = $1`, id)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get job %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &j, nil
}

func (s *Store) StartJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs
		 SET status = $2, progress = GREATEST(progress, $3), started_at = now()
		 WHERE id = $1 AND status = $4`,
		id, string(analysis.StatusInProgress), analysis.ProgressPickedUp, string(analysis.StatusPending))
	if err != nil {
		return fmt.Errorf("start job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("start job %s: %w", id, domain.ErrConflict)
	}
	return nil
}

func (s *Store) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	// GREATEST keeps progress monotonic even if updates arrive out of order.
	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs SET progress = GREATEST(progress, $2)
		 WHERE id = $1 AND status = $3`,
		id, progress, string(analysis.StatusInProgress))
	if err != nil {
		return fmt.Errorf("update job progress %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job progress %s: %w", id, domain.ErrConflict)
	}
	return nil
}

func (s *Store) CompleteJob(ctx context.Context, id string, result analysis.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs
		 SET status = $2, progress = 100, result = $3, completed_at = now()
		 WHERE id = $1 AND status = $4`,
		id, string(analysis.StatusCompleted), resultJSON, string(analysis.StatusInProgress))
	if err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete job %s: %w", id, domain.ErrConflict)
	}
	return nil
}

func (s *Store) FailJob(ctx context.Context, id string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs
		 SET status = $2, error = $3, completed_at = now()
		 WHERE id = $1 AND status IN ($4, $5)`,
		id, string(analysis.StatusFailed), errMsg,
		string(analysis.StatusPending), string(analysis.StatusInProgress))
	if err != nil {
		return fmt.Errorf("fail job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fail job %s: %w", id, domain.ErrConflict)
	}
	return nil
}

func scanJob(row scannable) (analysis.Job, error) {
	var j analysis.Job
	var resultJSON []byte
	err := row.Scan(&j.ID, &j.RepositoryID, &j.Status, &j.Progress, &resultJSON,
		&j.Error, &j.StartedAt, &j.CompletedAt, &j.CreatedAt)
	if err != nil {
		return j, err
	}
	if resultJSON != nil {
		var r analysis.Result
		if err := json.Unmarshal(resultJSON, &r); err != nil {
			return j, fmt.Errorf("unmarshal result: %w", err)
		}
		j.Result = &r
	}
	return j, nil
}
