package admin

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"

	"github.com/johnwards/flyoutsync/internal/api"
	"github.com/johnwards/flyoutsync/internal/database"
	"github.com/johnwards/flyoutsync/internal/domain"
	"github.com/johnwards/flyoutsync/internal/seed"
	"github.com/johnwards/flyoutsync/internal/store"
)

// Handler serves the admin API at /_flyoutsync/.
type Handler struct {
	db    *sql.DB
	store *store.Store
}

// Reset deletes all records, sync logs and jobs. Settings are kept.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := database.Reset(r.Context(), h.db); err != nil {
		api.WriteError(w, http.StatusInternalServerError, &api.Error{
			Status:        "error",
			Message:       fmt.Sprintf("failed to reset: %s", err),
			CorrelationID: api.CorrelationID(r.Context()),
			Category:      api.CategoryInternalError,
		})
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SeedData inserts demo records without dropping existing data first.
func (h *Handler) SeedData(w http.ResponseWriter, r *http.Request) {
	if err := seed.Seed(r.Context(), h.store.Records); err != nil {
		api.WriteError(w, http.StatusInternalServerError, &api.Error{
			Status:        "error",
			Message:       fmt.Sprintf("failed to seed: %s", err),
			CorrelationID: api.CorrelationID(r.Context()),
			Category:      api.CategoryInternalError,
		})
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Jobs lists deferred jobs, optionally filtered by status.
func (h *Handler) Jobs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	jobs, err := h.store.Jobs.List(r.Context(), domain.JobStatus(r.URL.Query().Get("status")), limit)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*domain.Job{}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"results": jobs})
}
