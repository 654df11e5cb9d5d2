package records

import (
	"encoding/json"
	"net/http"

	"github.com/johnwards/flyoutsync/internal/api"
	"github.com/johnwards/flyoutsync/internal/domain"
	"github.com/johnwards/flyoutsync/internal/store"
	flysync "github.com/johnwards/flyoutsync/internal/sync"
)

// Handler handles record HTTP requests. Every write goes through the sync
// coordinator so status changes reach FlyOut.
type Handler struct {
	store *store.Store
	coord *flysync.Coordinator
}

type createRequest struct {
	RemoteID string            `json:"remoteId"`
	Origin   domain.Origin     `json:"origin"`
	Status   string            `json:"status"`
	Fields   map[string]string `json:"fields"`
}

type updateRequest struct {
	Version int64             `json:"version"`
	Status  string            `json:"status"`
	Fields  map[string]string `json:"fields"`
	Comment string            `json:"comment"`
}

// Get handles GET /api/records/{entityType}/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	entityType, ok := parseType(w, r)
	if !ok {
		return
	}
	rec, err := h.coord.Get(r.Context(), entityType, r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rec)
}

// Comments handles GET /api/records/{entityType}/{id}/comments.
func (h *Handler) Comments(w http.ResponseWriter, r *http.Request) {
	entityType, ok := parseType(w, r)
	if !ok {
		return
	}
	rec, err := h.coord.Get(r.Context(), entityType, r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	comments, err := h.store.Records.Comments(r.Context(), rec.ID)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"results": comments})
}

// Create handles POST /api/records/{entityType}.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	entityType, ok := parseType(w, r)
	if !ok {
		return
	}

	var body createRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(r.Context()), nil))
		return
	}

	rec, err := h.coord.Create(r.Context(), &domain.Record{
		EntityType: entityType,
		RemoteID:   body.RemoteID,
		Origin:     body.Origin,
		Status:     body.Status,
		Fields:     body.Fields,
	})
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, rec)
}

// Update handles PATCH /api/records/{entityType}/{id}. Only the given
// fields change. A zero version means "the version just read", which skips
// the concurrent-edit check.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	entityType, ok := parseType(w, r)
	if !ok {
		return
	}

	var body updateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(r.Context()), nil))
		return
	}

	cur, err := h.coord.Get(r.Context(), entityType, r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}

	rec := cur.Clone()
	if body.Version != 0 {
		rec.Version = body.Version
	}
	if body.Status != "" {
		rec.Status = body.Status
	}
	for k, v := range body.Fields {
		rec.SetField(k, v)
	}

	var comments []domain.Comment
	if body.Comment != "" {
		comments = append(comments, domain.Comment{Kind: "Comment", Body: body.Comment})
	}

	res, err := h.coord.Save(r.Context(), rec, comments...)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}

// Sync handles POST /api/records/{entityType}/{id}/sync.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	entityType, ok := parseType(w, r)
	if !ok {
		return
	}
	res, err := h.coord.SyncNow(r.Context(), entityType, r.PathValue("id"))
	writeResult(w, r, res, err)
}

// Publish handles POST /api/records/{entityType}/{id}/publish.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	entityType, ok := parseType(w, r)
	if !ok {
		return
	}
	rec, res, err := h.coord.Publish(r.Context(), entityType, r.PathValue("id"))
	if err != nil {
		writeResult(w, r, res, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"record": rec, "result": res})
}

// Convert handles POST /api/records/inquiry/{id}/convert.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	res, err := h.coord.ConvertToClient(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	api.WriteJSON(w, status, res)
}

func parseType(w http.ResponseWriter, r *http.Request) (domain.EntityType, bool) {
	t, err := domain.ParseEntityType(r.PathValue("entityType"))
	if err != nil {
		api.WriteError(w, http.StatusNotFound, api.NewNotFoundError("Entity type not found", api.CorrelationID(r.Context())))
		return "", false
	}
	return t, true
}

// writeResult writes a sync result. A failure that was captured in the sync
// log carries its log id.
func writeResult(w http.ResponseWriter, r *http.Request, res *flysync.Result, err error) {
	if err != nil {
		status, apiErr := api.FromError(err, api.CorrelationID(r.Context()))
		if res != nil {
			apiErr.LogID = res.LogID
		}
		api.WriteError(w, status, apiErr)
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}
