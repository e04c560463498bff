package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	caotel "github.com/Strob0t/CodeAtlas/internal/adapter/otel"
	"github.com/Strob0t/CodeAtlas/internal/domain"
	"github.com/Strob0t/CodeAtlas/internal/domain/wiki"
	"github.com/Strob0t/CodeAtlas/internal/logger"
	"github.com/Strob0t/CodeAtlas/internal/port/database"
)

// WikiService coordinates wiki generation across a repository's
// subsystems and serves the stored pages.
type WikiService struct {
	store     database.Store
	generator *GeneratorService
	workers   int
	metrics   *caotel.Metrics
}

// NewWikiService creates a WikiService. workers bounds concurrent page
// generations; values below 1 mean sequential.
func NewWikiService(store database.Store, generator *GeneratorService, workers int) *WikiService {
	if workers < 1 {
		workers = 1
	}
	return &WikiService{store: store, generator: generator, workers: workers}
}

// SetMetrics attaches the metric instruments. Without it the service
// runs unmetered.
func (s *WikiService) SetMetrics(m *caotel.Metrics) {
	s.metrics = m
}

// GenerateWiki generates one page per subsystem of the repository and
// returns how many pages were written. When pages already exist the run
// is skipped unless force is set. A failing page never aborts its
// siblings; the run fails only when every page fails.
func (s *WikiService) GenerateWiki(ctx context.Context, repositoryID string, force bool) (int, error) {
	repo, err := s.store.GetRepository(ctx, repositoryID)
	if err != nil {
		return 0, fmt.Errorf("get repository: %w", err)
	}

	existing, err := s.store.CountWikiPages(ctx, repositoryID)
	if err != nil {
		return 0, fmt.Errorf("count wiki pages: %w", err)
	}
	if existing > 0 && !force {
		slog.Info("wiki generation skipped, pages exist", "repository_id", repositoryID, "pages", existing)
		return existing, nil
	}

	subs, err := s.store.ListSubsystems(ctx, repositoryID)
	if err != nil {
		return 0, fmt.Errorf("list subsystems: %w", err)
	}
	if len(subs) == 0 {
		return 0, fmt.Errorf("%w: repository has no subsystems, run analysis first", domain.ErrValidation)
	}

	var (
		mu        sync.Mutex
		succeeded int
		failed    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range subs {
		sub := subs[i]
		g.Go(func() error {
			pageCtx, span := caotel.StartPageSpan(gctx, repositoryID, sub.Name)
			defer span.End()

			page, err := s.generator.GeneratePage(pageCtx, repo, &sub)
			if err != nil {
				slog.Error("wiki page generation failed",
					"repository_id", repositoryID, "subsystem", sub.Name, "error", err)
				span.SetStatus(codes.Error, err.Error())
				s.countPage(pageCtx, &mu, &failed, false)
				return nil // non-fatal: other subsystems still get their pages
			}
			if _, err := s.store.UpsertWikiPage(pageCtx, *page); err != nil {
				slog.Error("wiki page store failed",
					"repository_id", repositoryID, "subsystem", sub.Name, "error", err)
				span.SetStatus(codes.Error, err.Error())
				s.countPage(pageCtx, &mu, &failed, false)
				return nil
			}
			s.countPage(pageCtx, &mu, &succeeded, true)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return succeeded, err
	}

	slog.Info("wiki generation finished",
		"repository_id", repositoryID, "succeeded", succeeded, "failed", failed)

	if succeeded == 0 {
		return 0, fmt.Errorf("wiki generation failed for all %d subsystems", failed)
	}
	return succeeded, nil
}

// countPage bumps the success or failure counter and the matching metric.
func (s *WikiService) countPage(ctx context.Context, mu *sync.Mutex, counter *int, ok bool) {
	mu.Lock()
	*counter++
	mu.Unlock()
	if s.metrics == nil {
		return
	}
	if ok {
		s.metrics.PagesGenerated.Add(ctx, 1)
	} else {
		s.metrics.PagesFailed.Add(ctx, 1)
	}
}

// GetWiki returns all wiki pages of a repository. The repository must
// exist; an analyzed repository with no pages yet returns an empty list.
func (s *WikiService) GetWiki(ctx context.Context, repositoryID string) ([]wiki.Page, error) {
	if _, err := s.store.GetRepository(ctx, repositoryID); err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}
	pages, err := s.store.ListWikiPages(ctx, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("list wiki pages: %w", err)
	}
	if pages == nil {
		pages = []wiki.Page{}
	}
	return pages, nil
}

// GetWikiPage returns the page for one subsystem, scoped to the given
// repository so a page cannot be read through another repository's URL.
func (s *WikiService) GetWikiPage(ctx context.Context, repositoryID, subsystemID string) (*wiki.Page, error) {
	page, err := s.store.GetWikiPageBySubsystem(ctx, subsystemID)
	if err != nil {
		return nil, err
	}
	if page.RepositoryID != repositoryID {
		return nil, fmt.Errorf("get wiki page for subsystem %s: %w", subsystemID, domain.ErrNotFound)
	}
	return page, nil
}

// HandleAnalysisCompleted is the AnalysisService completion callback:
// it regenerates the wiki after every successful analysis. Errors are
// logged only; the analysis verdict already stands.
func (s *WikiService) HandleAnalysisCompleted(ctx context.Context, repositoryID string, force bool) {
	count, err := s.GenerateWiki(ctx, repositoryID, force)
	if err != nil {
		slog.Error("post-analysis wiki generation failed",
			"job_id", logger.JobID(ctx), "repository_id", repositoryID, "error", err)
		return
	}
	slog.Info("post-analysis wiki generated",
		"job_id", logger.JobID(ctx), "repository_id", repositoryID, "pages", count)
}
