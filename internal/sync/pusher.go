package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/johnwards/flyoutsync/internal/domain"
	"github.com/johnwards/flyoutsync/internal/flyout"
	"github.com/johnwards/flyoutsync/internal/store"
)

// Pusher sends local record state to FlyOut and records every attempt in
// the sync log.
type Pusher struct {
	logs      store.SyncLogStore
	records   store.RecordStore
	settings  store.SettingsStore
	client    Doer
	scheduler *Scheduler
	cfg       Config
}

// Push sends rec's current state to FlyOut with a PUT. st may be nil, in
// which case the stored settings are used.
//
// Under a guarded context, with sync disabled or for a record that did not
// come from FlyOut, Push does nothing and writes no log. Every other call
// writes exactly one sync log entry. On failure the returned error carries
// the cause and the Result carries the log id; a retry is scheduled unless
// the failure is a configuration error.
func (p *Pusher) Push(ctx context.Context, rec *domain.Record, st *domain.Settings) (*Result, error) {
	return p.push(ctx, rec, st, 0)
}

func (p *Pusher) push(ctx context.Context, rec *domain.Record, st *domain.Settings, retryCount int) (*Result, error) {
	if InSync(ctx) {
		return &Result{
			Message:  "Sync currently in progress, skipping outbound.",
			Outcome:  OutcomeSkipped,
			RecordID: rec.ID,
		}, nil
	}

	if st == nil {
		var err error
		if st, err = p.settings.Get(ctx); err != nil {
			return nil, err
		}
	}

	if !st.EnableSync || rec.Origin != domain.OriginRemote {
		return &Result{
			Message:  "Synchronization is disabled or record is not from FlyOut",
			Outcome:  OutcomeNotApplicable,
			RecordID: rec.ID,
		}, nil
	}

	log := slog.With("entity_type", rec.EntityType, "entity_id", rec.ID, "remote_id", rec.RemoteID)
	endpoint := resourceURL(st.BaseURL, rec.EntityType, rec.RemoteID)
	entry := &domain.SyncLogEntry{
		Direction:  domain.DirectionOutbound,
		EntityType: rec.EntityType,
		EntityID:   rec.ID,
		RemoteID:   rec.RemoteID,
		Endpoint:   endpoint,
		Method:     http.MethodPut,
		RetryCount: retryCount,
	}

	code, err := p.precheck(rec, st)
	if err != nil {
		log.Warn("push not possible", "error", err)
		return p.recordFailure(ctx, entry, err, flyout.IsRetryable(err))
	}

	body, err := json.Marshal(p.payload(rec, code, true))
	if err != nil {
		return nil, fmt.Errorf("encode push payload: %w", err)
	}
	entry.RequestPayload = string(body)

	resp, err := p.client.Do(ctx, flyout.Request{
		Method:     http.MethodPut,
		URL:        endpoint,
		Headers:    flyout.JSONHeaders(st.APIKey),
		Body:       body,
		MaxRetries: p.cfg.HTTPMaxRetries,
		RetryDelay: p.cfg.HTTPRetryDelay,
		Timeout:    p.cfg.HTTPTimeout,
	})

	// Once the request has been attempted its outcome is recorded even if
	// the caller's context ends.
	done := context.WithoutCancel(ctx)
	if err != nil {
		log.Warn("push failed", "error", err)
		return p.recordFailure(done, entry, err, flyout.IsRetryable(err))
	}

	entry.Status = domain.LogSuccess
	entry.ResponsePayload = string(resp.Body)
	saved, err := p.logs.Insert(done, entry)
	if err != nil {
		return nil, fmt.Errorf("record push success: %w", err)
	}
	if err := p.settings.RecordSuccess(done, p.cfg.Now()); err != nil {
		log.Error("update sync status", "error", err)
	}

	log.Info("pushed record to FlyOut", "log_id", saved.ID, "attempts", resp.Attempts)
	return &Result{
		Success:  true,
		Message:  "Data synced successfully",
		Outcome:  OutcomeSynced,
		RecordID: rec.ID,
		LogID:    saved.ID,
		Endpoint: endpoint,
		Response: jsonOrNil(resp.Body),
	}, nil
}

// precheck returns the remote status code for rec or a configuration error.
func (p *Pusher) precheck(rec *domain.Record, st *domain.Settings) (string, error) {
	if rec.RemoteID == "" {
		return "", fmt.Errorf("%s %s has no FlyOut id: %w", rec.EntityType, rec.ID, domain.ErrConfiguration)
	}
	if err := st.CheckOutbound(); err != nil {
		return "", err
	}
	return p.cfg.StatusMaps.RemoteCode(rec.EntityType, rec.Status)
}

// recordFailure writes the Error entry for a failed attempt and, when retry
// is set, schedules a deferred retry of it. The writes ignore cancellation
// of ctx.
func (p *Pusher) recordFailure(ctx context.Context, entry *domain.SyncLogEntry, cause error, retry bool) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	entry.Status = domain.LogError
	entry.ErrorType = domain.ErrorType(cause)
	entry.ErrorMessage = cause.Error()
	var re *flyout.RemoteError
	if errors.As(cause, &re) {
		entry.ResponsePayload = re.Body
	}

	saved, err := p.logs.Insert(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("record push failure: %w (push error: %v)", err, cause)
	}

	res := failed(cause, saved.ID)
	res.RecordID = entry.EntityID
	res.Endpoint = entry.Endpoint

	if !retry {
		return res, cause
	}

	if err := p.settings.RecordFailure(ctx); err != nil {
		slog.Error("update sync status", "error", err)
	}
	scheduled, err := p.scheduler.ScheduleRetry(ctx, entry.EntityType, entry.EntityID, saved.ID, 0)
	if err != nil {
		slog.Error("schedule retry", "log_id", saved.ID, "error", err)
	}
	res.RetryScheduled = scheduled
	return res, cause
}

// Publish creates rec on FlyOut with a POST and, on success, stores the
// returned FlyOut id and switches the record's origin to Remote. Publish
// is never retried automatically.
func (p *Pusher) Publish(ctx context.Context, rec *domain.Record) (*domain.Record, *Result, error) {
	if rec.Origin == domain.OriginRemote {
		return nil, nil, fmt.Errorf("%s %s is already on FlyOut as %s: %w", rec.EntityType, rec.ID, rec.RemoteID, domain.ErrConflict)
	}

	st, err := p.settings.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !st.EnableSync {
		return nil, nil, fmt.Errorf("publish %s %s: %w", rec.EntityType, rec.ID, domain.ErrSyncDisabled)
	}

	endpoint := resourceURL(st.BaseURL, rec.EntityType, "")
	entry := &domain.SyncLogEntry{
		Direction:  domain.DirectionOutbound,
		EntityType: rec.EntityType,
		EntityID:   rec.ID,
		Endpoint:   endpoint,
		Method:     http.MethodPost,
	}

	code, err := p.precheckPublish(rec, st)
	if err != nil {
		res, err := p.recordFailure(ctx, entry, err, false)
		return nil, res, err
	}

	body, err := json.Marshal(p.payload(rec, code, false))
	if err != nil {
		return nil, nil, fmt.Errorf("encode publish payload: %w", err)
	}
	entry.RequestPayload = string(body)

	resp, err := p.client.Do(ctx, flyout.Request{
		Method:     http.MethodPost,
		URL:        endpoint,
		Headers:    flyout.JSONHeaders(st.APIKey),
		Body:       body,
		MaxRetries: 1,
		Timeout:    p.cfg.HTTPTimeout,
	})

	done := context.WithoutCancel(ctx)
	if err != nil {
		if serr := p.settings.RecordFailure(done); serr != nil {
			slog.Error("update sync status", "error", serr)
		}
		res, err := p.recordFailure(done, entry, err, false)
		return nil, res, err
	}
	entry.ResponsePayload = string(resp.Body)

	remoteID := remoteIDFrom(resp.Body)
	if remoteID == "" {
		res, err := p.recordFailure(done, entry,
			fmt.Errorf("FlyOut response has no %s: %w", domain.WireInquiryID, domain.ErrRemoteRejection), false)
		return nil, res, err
	}
	entry.RemoteID = remoteID

	published := rec.Clone()
	published.RemoteID = remoteID
	published.Origin = domain.OriginRemote
	updated, err := p.records.Update(done, published, domain.Comment{
		Kind: "Info",
		Body: fmt.Sprintf("Published to FlyOut as %s.", remoteID),
	})
	if err != nil {
		res, err := p.recordFailure(done, entry, fmt.Errorf("store FlyOut id %s: %w", remoteID, err), false)
		return nil, res, err
	}

	entry.Status = domain.LogSuccess
	saved, err := p.logs.Insert(done, entry)
	if err != nil {
		return updated, nil, fmt.Errorf("record publish success: %w", err)
	}
	if err := p.settings.RecordSuccess(done, p.cfg.Now()); err != nil {
		slog.Error("update sync status", "error", err)
	}

	slog.Info("published record to FlyOut", "entity_type", rec.EntityType, "entity_id", rec.ID, "remote_id", remoteID)
	return updated, &Result{
		Success:  true,
		Message:  fmt.Sprintf("%s published to FlyOut as %s", entityLabel(rec.EntityType), remoteID),
		Outcome:  OutcomePublished,
		RecordID: rec.ID,
		LogID:    saved.ID,
		Endpoint: endpoint,
		Response: jsonOrNil(resp.Body),
	}, nil
}

func (p *Pusher) precheckPublish(rec *domain.Record, st *domain.Settings) (string, error) {
	if err := st.CheckOutbound(); err != nil {
		return "", err
	}
	return p.cfg.StatusMaps.RemoteCode(rec.EntityType, rec.Status)
}

// payload projects rec onto the FlyOut wire format.
func (p *Pusher) payload(rec *domain.Record, statusCode string, withID bool) map[string]string {
	out := make(map[string]string, len(domain.SyncedFields)+4)
	for _, m := range domain.SyncedFields {
		out[m.Wire] = rec.Field(m.Local)
	}
	out[domain.WireNotes] = rec.Field(domain.FieldNotes)
	out[domain.WireStatus] = statusCode
	out[domain.WireUpdatedAt] = p.cfg.Now().UTC().Format("2006-01-02T15:04:05Z")
	if withID {
		out[domain.WireInquiryID] = rec.RemoteID
	}
	return out
}

func resourceURL(baseURL string, t domain.EntityType, remoteID string) string {
	u := strings.TrimRight(baseURL, "/") + "/" + t.Resource()
	if remoteID != "" {
		u += "/" + remoteID
	}
	return u
}

// remoteIDFrom extracts the FlyOut id from a create response.
func remoteIDFrom(body []byte) string {
	var resp map[string]any
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	for _, key := range []string{domain.WireInquiryID, "id"} {
		switch v := resp[key].(type) {
		case string:
			return v
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func jsonOrNil(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	return json.RawMessage(b)
}
