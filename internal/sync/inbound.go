package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/johnwards/flyoutsync/internal/domain"
	"github.com/johnwards/flyoutsync/internal/store"
)

// Webhook paths recorded as the endpoint of inbound log entries.
const (
	InboundEndpoint       = "/api/flyout/inquiries"
	InboundStatusEndpoint = "/api/flyout/inquiries/status"
)

const notesTimeLayout = "2006-01-02 15:04:05"

// InboundHandler applies FlyOut webhook payloads to local records. Each call
// writes one sync log entry, inserted as Received before any work and
// resolved once when the call ends. Log writes ignore cancellation of the
// caller's context so the entry always matches what was committed.
type InboundHandler struct {
	logs    store.SyncLogStore
	records store.RecordStore
	coord   *Coordinator
	maps    domain.StatusMaps
	now     func() time.Time
}

// Apply creates or updates the record FlyOut knows as remoteID. Only the
// fields present in payload are written; notes are appended.
func (h *InboundHandler) Apply(ctx context.Context, entityType domain.EntityType, remoteID string, payload map[string]any) (*Result, error) {
	entry, err := h.receive(ctx, InboundEndpoint, entityType, remoteID, payload)
	if err != nil {
		return nil, err
	}

	res, info, err := h.apply(ctx, entityType, remoteID, payload)
	return h.finish(ctx, entry, res, info, err)
}

// ApplyStatus applies a FlyOut status update. An unmapped or unchanged
// status leaves the record untouched and still succeeds.
func (h *InboundHandler) ApplyStatus(ctx context.Context, entityType domain.EntityType, payload map[string]any) (*Result, error) {
	remoteID, _ := payload[domain.WireInquiryID].(string)
	if remoteID == "" {
		remoteID, _ = payload[domain.WireRemoteID].(string)
	}
	entry, err := h.receive(ctx, InboundStatusEndpoint, entityType, remoteID, payload)
	if err != nil {
		return nil, err
	}

	res, info, err := h.applyStatus(ctx, entityType, payload)
	return h.finish(ctx, entry, res, info, err)
}

func (h *InboundHandler) receive(ctx context.Context, endpoint string, entityType domain.EntityType, remoteID string, payload map[string]any) (*domain.SyncLogEntry, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(fmt.Sprintf("%q", fmt.Sprint(payload)))
	}
	return h.logs.Insert(context.WithoutCancel(ctx), &domain.SyncLogEntry{
		Direction:      domain.DirectionInbound,
		Status:         domain.LogReceived,
		EntityType:     entityType,
		RemoteID:       remoteID,
		Endpoint:       endpoint,
		Method:         http.MethodPost,
		RequestPayload: string(body),
	})
}

// finish resolves the Received entry with the outcome of the call.
func (h *InboundHandler) finish(ctx context.Context, entry *domain.SyncLogEntry, res *Result, info map[string]string, callErr error) (*Result, error) {
	log := slog.With("log_id", entry.ID, "remote_id", entry.RemoteID)

	resolution := domain.LogResolution{EntityType: entry.EntityType}
	if res != nil {
		resolution.EntityID = res.RecordID
	}

	if callErr != nil {
		resolution.Status = domain.LogError
		resolution.ErrorType = domain.ErrorType(callErr)
		resolution.ErrorMessage = callErr.Error()
		res = failed(callErr, entry.ID)
		res.RecordID = resolution.EntityID
		log.Warn("inbound sync failed", "error", callErr)
	} else {
		resolution.Status = domain.LogSuccess
		if info == nil {
			info = map[string]string{}
		}
		info["message"] = res.Message
		if res.RecordID != "" {
			info["local_id"] = res.RecordID
		}
		if b, err := json.Marshal(info); err == nil {
			resolution.ResponsePayload = string(b)
		}
		res.Success = true
		res.LogID = entry.ID
		log.Info("inbound sync applied", "outcome", res.Outcome, "entity_id", res.RecordID)
	}

	if _, err := h.logs.Resolve(context.WithoutCancel(ctx), entry.ID, resolution); err != nil {
		return res, errors.Join(callErr, fmt.Errorf("resolve sync log %s: %w", entry.ID, err))
	}
	return res, callErr
}

func (h *InboundHandler) apply(ctx context.Context, entityType domain.EntityType, remoteID string, payload map[string]any) (*Result, map[string]string, error) {
	fields, err := flatten(payload)
	if err != nil {
		return nil, nil, err
	}
	if remoteID == "" {
		remoteID = wireRemoteID(fields)
	}
	if remoteID == "" {
		return nil, nil, &domain.ValidationError{Fields: []string{domain.WireInquiryID}}
	}

	existing, err := h.records.GetByRemoteID(ctx, entityType, remoteID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return h.create(ctx, entityType, remoteID, fields)
	case err != nil:
		return nil, nil, err
	}

	rec := existing.Clone()
	h.copyFields(rec, fields)
	if notes := fields[domain.WireNotes]; notes != "" {
		rec.SetField(domain.FieldNotes, appendNote(rec.Field(domain.FieldNotes), "Update from FlyOut", h.now(), notes))
	}
	info := h.applyInboundStatus(rec, fields)

	saved, err := h.coord.Save(WithGuard(ctx), rec)
	if err != nil {
		return &Result{RecordID: existing.ID}, nil, err
	}
	return &Result{
		Message:  entityLabel(entityType) + " updated successfully",
		Outcome:  OutcomeUpdated,
		RecordID: saved.Record.ID,
	}, info, nil
}

func (h *InboundHandler) create(ctx context.Context, entityType domain.EntityType, remoteID string, fields map[string]string) (*Result, map[string]string, error) {
	var missing []string
	for _, f := range domain.CreateRequiredFields {
		if fields[f] == "" && !(f == domain.WireInquiryID && remoteID != "") {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &domain.ValidationError{Fields: missing}
	}

	rec := &domain.Record{
		EntityType: entityType,
		RemoteID:   remoteID,
		Origin:     domain.OriginRemote,
		Status:     domain.InitialStatus(entityType),
	}
	h.copyFields(rec, fields)
	if notes := fields[domain.WireNotes]; notes != "" {
		rec.SetField(domain.FieldNotes, "From FlyOut:\n"+notes)
	}
	rec.SetField(domain.FieldInquiryDate, inquiryDate(fields[domain.WireCreatedAt], h.now()))
	info := h.applyInboundStatus(rec, fields)

	created, err := h.coord.Create(WithGuard(ctx), rec)
	if err != nil {
		return nil, nil, err
	}
	return &Result{
		Message:  entityLabel(entityType) + " created successfully",
		Outcome:  OutcomeCreated,
		RecordID: created.ID,
	}, info, nil
}

func (h *InboundHandler) applyStatus(ctx context.Context, entityType domain.EntityType, payload map[string]any) (*Result, map[string]string, error) {
	fields, err := flatten(payload)
	if err != nil {
		return nil, nil, err
	}
	var missing []string
	for _, f := range domain.StatusRequiredFields {
		if fields[f] == "" && !(f == domain.WireInquiryID && wireRemoteID(fields) != "") {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &domain.ValidationError{Fields: missing}
	}

	remoteID := wireRemoteID(fields)
	existing, err := h.records.GetByRemoteID(ctx, entityType, remoteID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s with FlyOut ID %s not found: %w", entityLabel(entityType), remoteID, domain.ErrNotFound)
		}
		return nil, nil, err
	}

	code := fields[domain.WireStatus]
	mapped, ok := h.maps.LocalStatus(entityType, code)
	if !ok || mapped == existing.Status {
		note := fmt.Sprintf("FlyOut status %q has no mapping.", code)
		if ok {
			note = fmt.Sprintf("FlyOut status %q matches current status %q.", code, existing.Status)
		}
		return &Result{
			Message:  entityLabel(entityType) + " status update received, no change applied.",
			Outcome:  OutcomeUnchanged,
			RecordID: existing.ID,
		}, map[string]string{"note": note}, nil
	}

	reason := fields[domain.WireReason]
	if reason == "" {
		reason = "No reason provided"
	}

	rec := existing.Clone()
	rec.Status = mapped
	if notes := fields[domain.WireNotes]; notes != "" {
		rec.SetField(domain.FieldNotes, appendNote(rec.Field(domain.FieldNotes), "Status Update Notes from FlyOut", h.now(), notes))
	}

	saved, err := h.coord.Save(WithGuard(ctx), rec, domain.Comment{
		Kind: "Info",
		Body: fmt.Sprintf("Status changed by FlyOut to %s. Reason: %s", code, reason),
	})
	if err != nil {
		return &Result{RecordID: existing.ID}, nil, err
	}
	return &Result{
		Message:  entityLabel(entityType) + " status updated successfully",
		Outcome:  OutcomeUpdated,
		RecordID: saved.Record.ID,
	}, nil, nil
}

// wireRemoteID returns the FlyOut id of a payload, taken from inquiry_id or
// its remote_id alias.
func wireRemoteID(fields map[string]string) string {
	if id := fields[domain.WireInquiryID]; id != "" {
		return id
	}
	return fields[domain.WireRemoteID]
}

// copyFields overwrites the record fields whose wire counterparts are
// present in fields.
func (h *InboundHandler) copyFields(rec *domain.Record, fields map[string]string) {
	for _, m := range domain.SyncedFields {
		if v, ok := fields[m.Wire]; ok {
			rec.SetField(m.Local, v)
		}
	}
}

// applyInboundStatus maps a status carried by a create-or-update payload.
// An unmapped code is reported back, not applied.
func (h *InboundHandler) applyInboundStatus(rec *domain.Record, fields map[string]string) map[string]string {
	code, ok := fields[domain.WireStatus]
	if !ok || code == "" {
		return nil
	}
	mapped, ok := h.maps.LocalStatus(rec.EntityType, code)
	if !ok {
		return map[string]string{"note": fmt.Sprintf("FlyOut status %q has no mapping; status left unchanged.", code)}
	}
	rec.Status = mapped
	return nil
}

// flatten converts a decoded JSON object into string fields. Nested objects
// and arrays are rejected; null values are treated as absent.
func flatten(payload map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(payload))
	var nested []string
	for k, v := range payload {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case bool:
			out[k] = strconv.FormatBool(val)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case json.Number:
			out[k] = val.String()
		default:
			nested = append(nested, k)
		}
	}
	if len(nested) > 0 {
		sort.Strings(nested)
		return nil, &domain.ValidationError{
			Message: "fields must be scalar values: " + strings.Join(nested, ", "),
			Fields:  nested,
		}
	}
	return out, nil
}

func appendNote(existing, heading string, at time.Time, note string) string {
	entry := fmt.Sprintf("%s (%s):\n%s", heading, at.UTC().Format(notesTimeLayout), note)
	if existing == "" {
		return entry
	}
	return existing + "\n\n" + entry
}

// inquiryDate returns the date part of a FlyOut created_at timestamp, or
// today when it is missing or unparseable.
func inquiryDate(createdAt string, now time.Time) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, createdAt); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return now.UTC().Format("2006-01-02")
}
