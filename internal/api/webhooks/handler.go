package webhooks

import (
	"encoding/json"
	"net/http"

	"github.com/johnwards/flyoutsync/internal/api"
	"github.com/johnwards/flyoutsync/internal/domain"
	flysync "github.com/johnwards/flyoutsync/internal/sync"
)

const maxBodyBytes = 1 << 20

// Handler receives FlyOut callbacks.
type Handler struct {
	inbound *flysync.InboundHandler
}

// response is the body FlyOut expects back from a callback.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	LocalID string `json:"local_id,omitempty"`
	LogID   string `json:"log_id,omitempty"`
}

// Inquiry handles POST /api/flyout/inquiries.
func (h *Handler) Inquiry(w http.ResponseWriter, r *http.Request) {
	payload, ok := decode(w, r)
	if !ok {
		return
	}
	res, err := h.inbound.Apply(r.Context(), domain.EntityInquiry, remoteID(payload), payload)
	write(w, r, res, err)
}

// Status handles POST /api/flyout/inquiries/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	payload, ok := decode(w, r)
	if !ok {
		return
	}
	if id := remoteID(payload); id != "" {
		payload[domain.WireInquiryID] = id
	}
	res, err := h.inbound.ApplyStatus(r.Context(), domain.EntityInquiry, payload)
	write(w, r, res, err)
}

func decode(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil || payload == nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(r.Context()), nil))
		return nil, false
	}
	return payload, true
}

// remoteID reads inquiry_id, or its remote_id alias, as a string whether
// FlyOut sent it as a string or a number.
func remoteID(payload map[string]any) string {
	for _, key := range []string{domain.WireInquiryID, domain.WireRemoteID} {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func write(w http.ResponseWriter, r *http.Request, res *flysync.Result, err error) {
	if err != nil {
		status, apiErr := api.FromError(err, api.CorrelationID(r.Context()))
		if res != nil {
			apiErr.LogID = res.LogID
		}
		api.WriteError(w, status, apiErr)
		return
	}
	api.WriteJSON(w, http.StatusOK, response{
		Success: true,
		Message: res.Message,
		LocalID: res.RecordID,
		LogID:   res.LogID,
	})
}
