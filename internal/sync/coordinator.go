package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/johnwards/flyoutsync/internal/domain"
	"github.com/johnwards/flyoutsync/internal/store"
)

// Coordinator is the single write path for records. It decides when a local
// change must be pushed to FlyOut.
type Coordinator struct {
	records  store.RecordStore
	settings store.SettingsStore
	pusher   *Pusher
}

// SaveResult is the outcome of Save. Push is advisory: the save succeeded
// even when the push failed.
type SaveResult struct {
	Record    *domain.Record `json:"record"`
	Push      *Result        `json:"push,omitempty"`
	PushError string         `json:"pushError,omitempty"`
}

// Get returns a record of the given type.
func (c *Coordinator) Get(ctx context.Context, entityType domain.EntityType, id string) (*domain.Record, error) {
	rec, err := c.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.EntityType != entityType {
		return nil, fmt.Errorf("%s %s: %w", entityType, id, domain.ErrNotFound)
	}
	return rec, nil
}

// Create inserts a new record. An empty status takes the type's initial
// status and an empty origin defaults to Local.
func (c *Coordinator) Create(ctx context.Context, rec *domain.Record) (*domain.Record, error) {
	rec = rec.Clone()
	if rec.Status == "" {
		rec.Status = domain.InitialStatus(rec.EntityType)
	}
	if rec.Origin == "" {
		rec.Origin = domain.OriginLocal
	}
	return c.records.Create(ctx, rec)
}

// Save writes rec, which must carry the version it was read at, and pushes
// it to FlyOut when its status changed outside a guarded context.
func (c *Coordinator) Save(ctx context.Context, rec *domain.Record, comments ...domain.Comment) (*SaveResult, error) {
	prev, err := c.records.Get(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	updated, err := c.records.Update(ctx, rec, comments...)
	if err != nil {
		return nil, err
	}

	out := &SaveResult{Record: updated}
	if InSync(ctx) || prev.Status == updated.Status {
		return out, nil
	}

	slog.Debug("status changed, pushing", "entity_type", updated.EntityType, "entity_id", updated.ID,
		"from", prev.Status, "to", updated.Status)
	res, err := c.pusher.Push(ctx, updated, nil)
	out.Push = res
	if err != nil {
		out.PushError = err.Error()
	}
	return out, nil
}

// SyncNow pushes the record's current state regardless of whether its
// status changed.
func (c *Coordinator) SyncNow(ctx context.Context, entityType domain.EntityType, id string) (*Result, error) {
	rec, err := c.Get(ctx, entityType, id)
	if err != nil {
		return nil, err
	}
	return c.pusher.Push(ctx, rec, nil)
}

// Publish creates a Local record on FlyOut and makes it Remote.
func (c *Coordinator) Publish(ctx context.Context, entityType domain.EntityType, id string) (*domain.Record, *Result, error) {
	rec, err := c.Get(ctx, entityType, id)
	if err != nil {
		return nil, nil, err
	}
	return c.pusher.Publish(ctx, rec)
}

// ConvertResult is the outcome of ConvertToClient.
type ConvertResult struct {
	Client  *domain.Record `json:"client"`
	Inquiry *domain.Record `json:"inquiry"`
	Created bool           `json:"created"`
	Push    *Result        `json:"push,omitempty"`
}

// ConvertToClient turns an inquiry that is Under Review into a client. The
// client inherits the inquiry's applicant fields, origin and FlyOut id, and
// the inquiry moves to Converted, which is pushed like any status change.
// Converting an already converted inquiry returns its existing client.
func (c *Coordinator) ConvertToClient(ctx context.Context, inquiryID string) (*ConvertResult, error) {
	inq, err := c.Get(ctx, domain.EntityInquiry, inquiryID)
	if err != nil {
		return nil, err
	}

	if linked := inq.Field(domain.FieldLinkedClient); linked != "" {
		client, err := c.records.Get(ctx, linked)
		if err != nil {
			return nil, fmt.Errorf("linked client %s: %w", linked, err)
		}
		return &ConvertResult{Client: client, Inquiry: inq}, nil
	}

	if inq.Status != domain.StatusUnderReview {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("inquiry must be %q to be converted, is %q", domain.StatusUnderReview, inq.Status),
			Fields:  []string{"status"},
		}
	}

	client, created, err := c.clientFor(ctx, inq)
	if err != nil {
		return nil, err
	}

	converted := inq.Clone()
	converted.SetField(domain.FieldLinkedClient, client.ID)
	converted.Status = domain.StatusConverted
	saved, err := c.Save(ctx, converted, domain.Comment{
		Kind: "Info",
		Body: fmt.Sprintf("Converted to client %s.", client.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("link inquiry %s to client %s: %w", inq.ID, client.ID, err)
	}

	slog.Info("converted inquiry to client", "inquiry_id", inq.ID, "client_id", client.ID, "created", created)
	return &ConvertResult{Client: client, Inquiry: saved.Record, Created: created, Push: saved.Push}, nil
}

// clientFor returns the client to link inq to. A client left by an earlier
// conversion that failed before linking is reused; otherwise a new client is
// created from the inquiry.
func (c *Coordinator) clientFor(ctx context.Context, inq *domain.Record) (*domain.Record, bool, error) {
	if inq.RemoteID != "" {
		existing, err := c.records.GetByRemoteID(ctx, domain.EntityClient, inq.RemoteID)
		switch {
		case err == nil:
			if existing.Field(domain.FieldLinkedInquiry) != inq.ID {
				return nil, false, fmt.Errorf("client %s already holds FlyOut id %s: %w", existing.ID, inq.RemoteID, domain.ErrConflict)
			}
			return existing, false, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, false, err
		}
	}

	client := &domain.Record{
		EntityType: domain.EntityClient,
		RemoteID:   inq.RemoteID,
		Origin:     inq.Origin,
		Status:     domain.InitialStatus(domain.EntityClient),
		Fields:     map[string]string{domain.FieldLinkedInquiry: inq.ID},
	}
	for _, f := range []string{
		domain.FieldApplicantName, domain.FieldContactEmail, domain.FieldContactPhone,
		domain.FieldServiceType, domain.FieldDestinationCountry, domain.FieldSourceCountry,
	} {
		if v := inq.Field(f); v != "" {
			client.SetField(f, v)
		}
	}

	created, err := c.records.Create(ctx, client)
	if err != nil {
		return nil, false, fmt.Errorf("create client: %w", err)
	}
	return created, true, nil
}
