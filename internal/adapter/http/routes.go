package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Repositories
		r.Post("/repositories/analyze", h.AnalyzeRepository)
		r.Get("/repositories", h.ListRepositories)
		r.Get("/repositories/{id}", h.GetRepository)
		r.Get("/repositories/{id}/subsystems", h.ListSubsystems)

		// Analysis jobs
		r.Get("/jobs/{id}", h.GetJob)

		// Wiki
		r.Post("/repositories/{id}/wiki/generate", h.GenerateWiki)
		r.Get("/repositories/{id}/wiki", h.GetWiki)
		r.Get("/repositories/{id}/wiki/pages/{subsystemId}", h.GetWikiPage)
	})
}
