package synclogs

import (
	"net/http"

	"github.com/johnwards/flyoutsync/internal/store"
	flysync "github.com/johnwards/flyoutsync/internal/sync"
)

// RegisterRoutes adds the sync log endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store, engine *flysync.Engine) {
	h := &Handler{logs: s.SyncLogs, scheduler: engine.Scheduler}

	mux.HandleFunc("GET /api/sync-logs", h.List)
	mux.HandleFunc("GET /api/sync-logs/{id}", h.Get)
	mux.HandleFunc("POST /api/sync-logs/{id}/retry", h.Retry)
}
