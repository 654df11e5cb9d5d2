package webhooks

import (
	"net/http"

	"github.com/johnwards/flyoutsync/internal/api"
	"github.com/johnwards/flyoutsync/internal/store"
	flysync "github.com/johnwards/flyoutsync/internal/sync"
)

// RegisterRoutes adds the FlyOut callback endpoints to the given mux. They
// are authenticated with the FlyOut API key rather than the admin token.
func RegisterRoutes(mux *http.ServeMux, s *store.Store, engine *flysync.Engine) {
	h := &Handler{inbound: engine.Inbound}
	auth := api.WebhookAuth(s.Settings)

	mux.Handle("POST "+flysync.InboundEndpoint, auth(http.HandlerFunc(h.Inquiry)))
	mux.Handle("POST "+flysync.InboundStatusEndpoint, auth(http.HandlerFunc(h.Status)))
}
