package http

import (
	"net/http"

	"github.com/Strob0t/CodeAtlas/internal/domain/analysis"
	"github.com/Strob0t/CodeAtlas/internal/domain/repository"
	"github.com/Strob0t/CodeAtlas/internal/domain/wiki"
	"github.com/Strob0t/CodeAtlas/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Repositories *service.RepositoryService
	Analysis     *service.AnalysisService
	Wiki         *service.WikiService

	// BodyLimit caps request body sizes for JSON decoding.
	BodyLimit int64
}

// AnalyzeRepository handles POST /api/v1/repositories/analyze
//
// The analysis itself runs asynchronously; the response carries the
// pending job so the caller can poll GET /api/v1/jobs/{id}.
func (h *Handlers) AnalyzeRepository(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		URL string `json:"url"`
	}](w, r, h.BodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.URL, "url") {
		return
	}

	job, err := h.Analysis.StartAnalysis(r.Context(), req.URL)
	if err != nil {
		writeDomainError(w, err, "repository not found")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// GetJob handles GET /api/v1/jobs/{id}
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	job, err := h.Analysis.GetJobStatus(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ListRepositories handles GET /api/v1/repositories
func (h *Handlers) ListRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := h.Repositories.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if repos == nil {
		repos = []repository.Repository{}
	}
	writeJSON(w, http.StatusOK, repos)
}

// GetRepository handles GET /api/v1/repositories/{id}
func (h *Handlers) GetRepository(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	repo, err := h.Repositories.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "repository not found")
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

// ListSubsystems handles GET /api/v1/repositories/{id}/subsystems
func (h *Handlers) ListSubsystems(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	subs, err := h.Repositories.ListSubsystems(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "repository not found")
		return
	}
	if subs == nil {
		subs = []analysis.Subsystem{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// GenerateWiki handles POST /api/v1/repositories/{id}/wiki/generate
//
// Generation runs to completion before responding. Subsystems whose page
// fails are skipped, so a partial wiki still returns 200 with the count
// of pages that now exist.
func (h *Handlers) GenerateWiki(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	req, ok := readJSON[struct {
		Force bool `json:"force"`
	}](w, r, h.BodyLimit)
	if !ok {
		return
	}

	count, err := h.Wiki.GenerateWiki(r.Context(), id, req.Force)
	if err != nil {
		writeDomainError(w, err, "repository not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": count})
}

// GetWiki handles GET /api/v1/repositories/{id}/wiki
func (h *Handlers) GetWiki(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	pages, err := h.Wiki.GetWiki(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "repository not found")
		return
	}
	if pages == nil {
		pages = []wiki.Page{}
	}
	writeJSON(w, http.StatusOK, pages)
}

// GetWikiPage handles GET /api/v1/repositories/{id}/wiki/pages/{subsystemId}
func (h *Handlers) GetWikiPage(w http.ResponseWriter, r *http.Request) {
	repoID := urlParam(r, "id")
	subsystemID := urlParam(r, "subsystemId")

	page, err := h.Wiki.GetWikiPage(r.Context(), repoID, subsystemID)
	if err != nil {
		writeDomainError(w, err, "wiki page not found")
		return
	}
	writeJSON(w, http.StatusOK, page)
}
