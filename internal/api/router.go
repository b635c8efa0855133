package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/taxonid/internal/lookup"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *lookup.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Name resolution.
	r.Get("/resolve", h.Resolve)
	r.Post("/resolve/batch", h.ResolveBatch)

	// Taxon lookups.
	r.Route("/taxa/{taxid}", func(r chi.Router) {
		r.Get("/rank", h.Rank)
		r.Get("/prokaryote", h.Prokaryote)
		r.Get("/ascendants", h.Ascendants)
	})
	r.Post("/names", h.Names)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
