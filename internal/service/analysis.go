package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	caotel "github.com/Strob0t/CodeAtlas/internal/adapter/otel"
	"github.com/Strob0t/CodeAtlas/internal/domain"
	"github.com/Strob0t/CodeAtlas/internal/domain/analysis"
	"github.com/Strob0t/CodeAtlas/internal/domain/repository"
	"github.com/Strob0t/CodeAtlas/internal/logger"
	"github.com/Strob0t/CodeAtlas/internal/port/database"
	"github.com/Strob0t/CodeAtlas/internal/port/messagequeue"
	"github.com/Strob0t/CodeAtlas/internal/port/reposource"
)

// AnalysisService owns the analysis job lifecycle: accepting requests,
// publishing them to the queue, and running the discovery/classification
// pipeline when a job is picked up.
type AnalysisService struct {
	store      database.Store
	queue      messagequeue.Queue
	source     reposource.Source
	classifier *ClassifierService
	metrics    *caotel.Metrics

	// onComplete is invoked in a fresh goroutine after a job finishes
	// successfully. Wired to wiki generation at startup.
	onComplete func(ctx context.Context, repositoryID string, force bool)
}

// NewAnalysisService creates an AnalysisService with all dependencies.
func NewAnalysisService(store database.Store, queue messagequeue.Queue, source reposource.Source, classifier *ClassifierService) *AnalysisService {
	return &AnalysisService{
		store:      store,
		queue:      queue,
		source:     source,
		classifier: classifier,
	}
}

// SetOnAnalysisComplete registers the callback fired after a successful
// analysis. Set once during wiring, before the subscriber starts.
func (s *AnalysisService) SetOnAnalysisComplete(fn func(ctx context.Context, repositoryID string, force bool)) {
	s.onComplete = fn
}

// SetMetrics attaches the metric instruments. Without it the service
// runs unmetered.
func (s *AnalysisService) SetMetrics(m *caotel.Metrics) {
	s.metrics = m
}

// StartAnalysis accepts a repository URL, creates (or reuses) the
// repository row, creates a pending job, and publishes it to the queue.
// The returned job carries both the job ID and the repository ID.
func (s *AnalysisService) StartAnalysis(ctx context.Context, rawURL string) (*analysis.Job, error) {
	ref, err := repository.ParseRepoURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	repo, err := s.store.GetRepositoryByURL(ctx, ref.Canonical())
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get repository: %w", err)
		}
		repo, err = s.store.CreateRepository(ctx, repository.Repository{
			URL:   ref.Canonical(),
			Owner: ref.Owner,
			Name:  ref.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("create repository: %w", err)
		}
	}

	job, err := s.store.CreateJob(ctx, analysis.Job{
		ID:           uuid.New().String(),
		RepositoryID: repo.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	payload := messagequeue.JobRequestPayload{
		JobID:        job.ID,
		RepositoryID: repo.ID,
		Owner:        repo.Owner,
		Name:         repo.Name,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal job request: %w", err)
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectAnalysisRequested, data); err != nil {
		return nil, fmt.Errorf("publish job request: %w", err)
	}

	slog.Info("analysis requested", "job_id", job.ID, "repository", repo.Owner+"/"+repo.Name)
	return job, nil
}

// GetJobStatus returns the current state of an analysis job.
func (s *AnalysisService) GetJobStatus(ctx context.Context, id string) (*analysis.Job, error) {
	return s.store.GetJob(ctx, id)
}

// StartSubscriber subscribes to analysis job requests and runs the
// pipeline for each one.
func (s *AnalysisService) StartSubscriber(ctx context.Context) (cancel func(), err error) {
	return s.queue.Subscribe(ctx, messagequeue.SubjectAnalysisRequested, func(msgCtx context.Context, _ string, data []byte) error {
		var payload messagequeue.JobRequestPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("unmarshal job request: %w", err)
		}
		return s.RunJob(msgCtx, &payload)
	})
}

// RunJob executes the analysis pipeline for one job: discover files,
// classify subsystems, merge them into the database, and stamp the
// repository. Pipeline failures mark the job failed and are not
// returned, so the queue never retries a job that already has a verdict.
func (s *AnalysisService) RunJob(ctx context.Context, payload *messagequeue.JobRequestPayload) error {
	if err := s.store.StartJob(ctx, payload.JobID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Redelivered or concurrently picked up. Nothing to do.
			slog.Info("job already picked up", "job_id", payload.JobID)
			return nil
		}
		return fmt.Errorf("start job: %w", err)
	}

	start := time.Now()
	ctx = logger.WithJobID(ctx, payload.JobID)
	ctx, span := caotel.StartJobSpan(ctx, payload.JobID, payload.RepositoryID)
	defer span.End()
	if s.metrics != nil {
		s.metrics.JobsStarted.Add(ctx, 1)
	}

	repo, err := s.store.GetRepository(ctx, payload.RepositoryID)
	if err != nil {
		return s.failJob(ctx, span, payload.JobID, fmt.Errorf("get repository: %w", err))
	}
	wasAnalyzed := repo.Analyzed()

	if err := s.runPipeline(ctx, payload.JobID, repo); err != nil {
		return s.failJob(ctx, span, payload.JobID, err)
	}

	if err := s.store.MarkRepositoryAnalyzed(ctx, repo.ID); err != nil {
		slog.Error("mark repository analyzed failed", "repository_id", repo.ID, "error", err)
	}

	if s.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("repository.id", repo.ID))
		s.metrics.JobsCompleted.Add(ctx, 1, attrs)
		s.metrics.JobDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}

	slog.Info("analysis completed", "job_id", payload.JobID, "repository", repo.Owner+"/"+repo.Name)

	if s.onComplete != nil {
		// Detached from the message context: wiki generation outlives the ack.
		go s.onComplete(context.WithoutCancel(ctx), repo.ID, wasAnalyzed)
	}
	return nil
}

// runPipeline performs the discovery and classification phases, updating
// job progress at each checkpoint.
func (s *AnalysisService) runPipeline(ctx context.Context, jobID string, repo *repository.Repository) error {
	info, err := s.source.GetRepoInfo(ctx, repo.Owner, repo.Name)
	if err != nil {
		return fmt.Errorf("get repo info: %w", err)
	}
	if err := s.store.UpdateRepositoryMeta(ctx, repo.ID, info.Description, info.PrimaryLanguage, info.Stars); err != nil {
		return fmt.Errorf("update repository meta: %w", err)
	}
	repo.Description = info.Description
	repo.PrimaryLanguage = info.PrimaryLanguage
	repo.Stars = info.Stars

	files, err := s.source.ListFiles(ctx, repo.Owner, repo.Name)
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}

	relevant := make([]reposource.FileInfo, 0, len(files))
	for _, f := range files {
		if analysis.RelevantFile(f.Path) {
			relevant = append(relevant, f)
		}
	}
	if len(relevant) == 0 {
		return fmt.Errorf("repository has no analyzable files")
	}
	slog.Info("files discovered", "job_id", jobID, "total", len(files), "relevant", len(relevant))
	s.progress(ctx, jobID, analysis.ProgressDiscovered)

	clsCtx, clsSpan := caotel.StartClassifySpan(ctx, repo.ID, len(relevant))
	subs, summary, err := s.classifier.Classify(clsCtx, repo, relevant)
	if err != nil {
		clsSpan.SetStatus(codes.Error, err.Error())
		clsSpan.End()
		return fmt.Errorf("classify: %w", err)
	}
	clsSpan.End()
	s.progress(ctx, jobID, analysis.ProgressClassified)

	merged, err := s.mergeSubsystems(ctx, repo.ID, subs)
	if err != nil {
		return fmt.Errorf("merge subsystems: %w", err)
	}

	if err := s.store.CompleteJob(ctx, jobID, analysis.Result{
		SubsystemCount: merged,
		Summary:        summary,
	}); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// mergeSubsystems reconciles freshly classified subsystems with stored
// ones by exact name: matches are updated in place, new names are
// inserted, and subsystems absent from the new classification are left
// untouched so their wiki pages stay resolvable.
func (s *AnalysisService) mergeSubsystems(ctx context.Context, repositoryID string, subs []analysis.Subsystem) (int, error) {
	existing, err := s.store.ListSubsystems(ctx, repositoryID)
	if err != nil {
		return 0, fmt.Errorf("list subsystems: %w", err)
	}
	byName := make(map[string]*analysis.Subsystem, len(existing))
	for i := range existing {
		byName[existing[i].Name] = &existing[i]
	}

	for i := range subs {
		sub := subs[i]
		if prev, ok := byName[sub.Name]; ok {
			sub.ID = prev.ID
			if err := s.store.UpdateSubsystem(ctx, sub); err != nil {
				return 0, fmt.Errorf("update subsystem %s: %w", sub.Name, err)
			}
			continue
		}
		if _, err := s.store.CreateSubsystem(ctx, sub); err != nil {
			return 0, fmt.Errorf("create subsystem %s: %w", sub.Name, err)
		}
	}
	return len(subs), nil
}

// progress records a checkpoint. Failures are logged, not fatal: losing
// a progress tick must not kill a healthy pipeline.
func (s *AnalysisService) progress(ctx context.Context, jobID string, value int) {
	if err := s.store.UpdateJobProgress(ctx, jobID, value); err != nil {
		slog.Warn("update job progress failed", "job_id", jobID, "progress", value, "error", err)
	}
}

// failJob records the pipeline error on the job. The queue message is
// still acked: the verdict lives in the job row, and a redelivery would
// hit the StartJob guard anyway.
func (s *AnalysisService) failJob(ctx context.Context, span trace.Span, jobID string, cause error) error {
	slog.Error("analysis failed", "job_id", jobID, "error", cause)
	span.SetStatus(codes.Error, cause.Error())
	if s.metrics != nil {
		s.metrics.JobsFailed.Add(ctx, 1)
	}
	if err := s.store.FailJob(ctx, jobID, cause.Error()); err != nil {
		slog.Error("fail job failed", "job_id", jobID, "error", err)
	}
	return nil
}
