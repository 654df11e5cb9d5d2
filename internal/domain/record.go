package domain

import "fmt"

// EntityType names a kind of synchronized record.
type EntityType string

const (
	EntityInquiry EntityType = "inquiry"
	EntityClient  EntityType = "client"
)

// ParseEntityType validates a path or payload entity type.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityInquiry, EntityClient:
		return EntityType(s), nil
	}
	return "", fmt.Errorf("unknown entity type %q: %w", s, ErrValidation)
}

// Resource returns the partner API resource path records of this type sync
// against. Clients are tracked on FlyOut by their originating inquiry.
func (t EntityType) Resource() string {
	return "providers/inquiries"
}

// Origin records which side created a record.
type Origin string

const (
	OriginLocal  Origin = "Local"
	OriginRemote Origin = "Remote"
)

// Local field names stored in Record.Fields.
const (
	FieldApplicantName      = "applicant_name"
	FieldContactEmail       = "contact_email"
	FieldContactPhone       = "contact_phone"
	FieldServiceType        = "service_type"
	FieldDestinationCountry = "destination_country"
	FieldSourceCountry      = "source_country"
	FieldNotes              = "notes"
	FieldInquiryDate        = "inquiry_date"
	FieldLinkedInquiry      = "linked_inquiry"
	FieldLinkedClient       = "linked_client"
)

// Inquiry statuses.
const (
	StatusNew         = "New"
	StatusUnderReview = "Under Review"
	StatusConverted   = "Converted"
	StatusRejected    = "Rejected"
)

// Client statuses.
const (
	StatusActive     = "Active"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
	StatusCancelled  = "Cancelled"
)

// Statuses lists the local lifecycle states of each entity type.
var Statuses = map[EntityType][]string{
	EntityInquiry: {StatusNew, StatusUnderReview, StatusConverted, StatusRejected},
	EntityClient:  {StatusActive, StatusInProgress, StatusCompleted, StatusCancelled},
}

// InitialStatus returns the status a new record of type t starts in.
func InitialStatus(t EntityType) string {
	if t == EntityClient {
		return StatusActive
	}
	return StatusNew
}

// ValidStatus reports whether status is a lifecycle state of t.
func ValidStatus(t EntityType, status string) bool {
	for _, s := range Statuses[t] {
		if s == status {
			return true
		}
	}
	return false
}

// Record is a local business entity that is kept in sync with FlyOut.
type Record struct {
	ID         string            `json:"id"`
	EntityType EntityType        `json:"entityType"`
	RemoteID   string            `json:"remoteId,omitempty"`
	Origin     Origin            `json:"origin"`
	Status     string            `json:"status"`
	Fields     map[string]string `json:"fields"`
	Version    int64             `json:"version"`
	CreatedAt  string            `json:"createdAt"`
	UpdatedAt  string            `json:"updatedAt"`
}

// Clone returns a deep copy of r so callers can mutate fields without
// touching a record another component holds.
func (r *Record) Clone() *Record {
	c := *r
	c.Fields = make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		c.Fields[k] = v
	}
	return &c
}

// Field returns a syncable field value, or "" when unset.
func (r *Record) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// SetField sets a syncable field value.
func (r *Record) SetField(name, value string) {
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	r.Fields[name] = value
}

// Validate checks the record's identity invariants.
func (r *Record) Validate() error {
	if _, err := ParseEntityType(string(r.EntityType)); err != nil {
		return err
	}
	switch r.Origin {
	case OriginLocal, OriginRemote:
	default:
		return fmt.Errorf("unknown origin %q: %w", r.Origin, ErrValidation)
	}
	if r.Origin == OriginRemote && r.RemoteID == "" {
		return &ValidationError{Message: "remote-origin record requires a remote id", Fields: []string{"remote_id"}}
	}
	if !ValidStatus(r.EntityType, r.Status) {
		return &ValidationError{Message: fmt.Sprintf("invalid %s status %q", r.EntityType, r.Status), Fields: []string{"status"}}
	}
	return nil
}

// Comment is an audit note attached to a record.
type Comment struct {
	ID        int64  `json:"id"`
	RecordID  string `json:"recordId"`
	Kind      string `json:"kind"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
}
