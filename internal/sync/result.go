package sync

import (
	"encoding/json"

	"github.com/johnwards/flyoutsync/internal/domain"
)

// Outcome classifies what a sync operation did.
type Outcome string

const (
	OutcomeCreated       Outcome = "created"
	OutcomeUpdated       Outcome = "updated"
	OutcomeUnchanged     Outcome = "unchanged"
	OutcomeSynced        Outcome = "synced"
	OutcomePublished     Outcome = "published"
	OutcomeSkipped       Outcome = "skipped"
	OutcomeNotApplicable Outcome = "not_applicable"
	OutcomeFailed        Outcome = "failed"
)

// Result is the caller-facing summary of a sync operation.
type Result struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	Outcome        Outcome         `json:"outcome"`
	RecordID       string          `json:"local_id,omitempty"`
	LogID          string          `json:"log_id,omitempty"`
	Endpoint       string          `json:"endpoint,omitempty"`
	Response       json.RawMessage `json:"response,omitempty"`
	ErrorType      string          `json:"error_type,omitempty"`
	RetryScheduled bool            `json:"retry_scheduled,omitempty"`
}

func failed(err error, logID string) *Result {
	return &Result{
		Message:   err.Error(),
		Outcome:   OutcomeFailed,
		LogID:     logID,
		ErrorType: domain.ErrorType(err),
	}
}

func entityLabel(t domain.EntityType) string {
	switch t {
	case domain.EntityClient:
		return "Client"
	default:
		return "Inquiry"
	}
}
