package settings

import (
	"net/http"

	"github.com/johnwards/flyoutsync/internal/store"
)

// RegisterRoutes adds the settings endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store, pinger Pinger) {
	h := &Handler{settings: s.Settings, pinger: pinger}

	mux.HandleFunc("GET /api/settings", h.Get)
	mux.HandleFunc("PUT /api/settings", h.Update)
	mux.HandleFunc("POST /api/settings/test-connection", h.TestConnection)
}
