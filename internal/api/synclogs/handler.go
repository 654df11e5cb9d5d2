package synclogs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/johnwards/flyoutsync/internal/api"
	"github.com/johnwards/flyoutsync/internal/domain"
	"github.com/johnwards/flyoutsync/internal/store"
	flysync "github.com/johnwards/flyoutsync/internal/sync"
)

// Handler serves the sync log audit trail.
type Handler struct {
	logs      store.SyncLogStore
	scheduler *flysync.Scheduler
}

type listResponse struct {
	Results []*domain.SyncLogEntry `json:"results"`
	Paging  *api.Paging            `json:"paging,omitempty"`
}

// List handles GET /api/sync-logs.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.LogFilter{
		Direction: domain.Direction(q.Get("direction")),
		Status:    domain.LogStatus(q.Get("status")),
		EntityID:  q.Get("entityId"),
		RemoteID:  q.Get("remoteId"),
		Before:    q.Get("after"),
	}
	if v := q.Get("entityType"); v != "" {
		t, err := domain.ParseEntityType(v)
		if err != nil {
			api.WriteDomainError(w, r, err)
			return
		}
		f.EntityType = t
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}

	page, err := h.logs.List(r.Context(), f)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	resp := listResponse{Results: page.Results}
	if resp.Results == nil {
		resp.Results = []*domain.SyncLogEntry{}
	}
	if page.HasMore {
		resp.Paging = &api.Paging{Next: &api.PagingNext{After: page.After}}
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/sync-logs/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.logs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, entry)
}

// Retry handles POST /api/sync-logs/{id}/retry. An optional delay query
// parameter (a Go duration) overrides the backoff delay.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	var delay time.Duration
	if v := r.URL.Query().Get("delay"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			api.WriteError(w, http.StatusBadRequest, api.NewValidationError("delay must be a non-negative duration", api.CorrelationID(r.Context()), nil))
			return
		}
		delay = d
	}

	entry, err := h.logs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	scheduled, err := h.scheduler.ScheduleRetry(r.Context(), entry.EntityType, entry.EntityID, entry.ID, delay)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	msg := "Retry scheduled"
	if !scheduled {
		msg = "Retry not scheduled: already pending or retry limit reached"
	}
	api.WriteJSON(w, http.StatusAccepted, map[string]any{
		"success":   scheduled,
		"message":   msg,
		"log_id":    entry.ID,
		"scheduled": scheduled,
	})
}
