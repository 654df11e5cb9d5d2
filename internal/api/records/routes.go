package records

import (
	"net/http"

	"github.com/johnwards/flyoutsync/internal/store"
	flysync "github.com/johnwards/flyoutsync/internal/sync"
)

// RegisterRoutes adds the record endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store, engine *flysync.Engine) {
	h := &Handler{store: s, coord: engine.Coordinator}

	mux.HandleFunc("POST /api/records/{entityType}", h.Create)
	mux.HandleFunc("GET /api/records/{entityType}/{id}", h.Get)
	mux.HandleFunc("PATCH /api/records/{entityType}/{id}", h.Update)
	mux.HandleFunc("GET /api/records/{entityType}/{id}/comments", h.Comments)
	mux.HandleFunc("POST /api/records/{entityType}/{id}/sync", h.Sync)
	mux.HandleFunc("POST /api/records/{entityType}/{id}/publish", h.Publish)
	mux.HandleFunc("POST /api/records/inquiry/{id}/convert", h.Convert)
}
