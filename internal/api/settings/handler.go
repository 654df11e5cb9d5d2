package settings

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/johnwards/flyoutsync/internal/api"
	"github.com/johnwards/flyoutsync/internal/flyout"
	"github.com/johnwards/flyoutsync/internal/store"
)

// Pinger checks FlyOut credentials.
type Pinger interface {
	Ping(ctx context.Context, baseURL, apiKey string) (*flyout.Response, error)
}

// Handler serves the FlyOut account settings.
type Handler struct {
	settings store.SettingsStore
	pinger   Pinger
}

type updateRequest struct {
	BaseURL    string `json:"baseUrl"`
	APIKey     string `json:"apiKey"`
	EnableSync bool   `json:"enableSync"`
}

// Get handles GET /api/settings. The API key is masked.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.settings.Get(r.Context())
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, st.Redacted())
}

// Update handles PUT /api/settings. An empty or masked API key keeps the
// stored one.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var body updateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(r.Context()), nil))
		return
	}

	cur, err := h.settings.Get(r.Context())
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	next := *cur
	next.BaseURL = body.BaseURL
	next.EnableSync = body.EnableSync
	if body.APIKey != "" && body.APIKey != cur.Redacted().APIKey {
		next.APIKey = body.APIKey
	}

	saved, err := h.settings.Save(r.Context(), &next)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	slog.Info("FlyOut settings updated", "enable_sync", saved.EnableSync, "sync_status", saved.SyncStatus)
	api.WriteJSON(w, http.StatusOK, saved.Redacted())
}

// TestConnection handles POST /api/settings/test-connection.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	st, err := h.settings.Get(r.Context())
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	if _, err := h.pinger.Ping(r.Context(), st.BaseURL, st.APIKey); err != nil {
		slog.Warn("FlyOut connection test failed", "error", err)
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Connection to FlyOut successful",
	})
}
