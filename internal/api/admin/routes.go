package admin

import (
	"net/http"

	"github.com/johnwards/flyoutsync/internal/store"
)

// RegisterRoutes registers all admin API endpoints on the mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store) {
	h := &Handler{db: s.DB, store: s}

	mux.HandleFunc("POST /_flyoutsync/reset", h.Reset)
	mux.HandleFunc("POST /_flyoutsync/seed", h.SeedData)
	mux.HandleFunc("GET /_flyoutsync/jobs", h.Jobs)
}
