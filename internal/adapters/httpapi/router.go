package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter builds the full HTTP surface for the discovery service.
func NewRouter(discoveryHandler *DiscoveryHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(logger)
	r.Use(recovery)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/projects/{project}/discovery-runs", discoveryHandler.CreateRun)
		r.Get("/discovery-runs/{id}", discoveryHandler.GetRun)
	})

	return r
}
