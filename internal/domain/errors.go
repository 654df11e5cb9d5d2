package domain

import (
	"errors"
	"strings"
)

// Sync error taxonomy. Callers classify with errors.Is.
var (
	// ErrValidation marks a malformed or incomplete payload.
	ErrValidation = errors.New("validation error")

	// ErrAuthentication marks a missing or invalid webhook token.
	ErrAuthentication = errors.New("authentication error")

	// ErrNotFound is returned when a referenced record or log does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTransientNetwork marks timeouts and connection failures.
	ErrTransientNetwork = errors.New("transient network error")

	// ErrRemoteRejection marks a non-2xx response from the partner API.
	ErrRemoteRejection = errors.New("remote rejection")

	// ErrConfiguration marks settings that make sync impossible. Retrying
	// cannot fix these.
	ErrConfiguration = errors.New("configuration error")

	// ErrConflict is returned when a write loses an optimistic version check
	// or violates a unique identifier.
	ErrConflict = errors.New("conflict")

	// ErrLogFinalized is returned when resolving a sync log entry that has
	// already reached a terminal status.
	ErrLogFinalized = errors.New("sync log already finalized")

	// ErrSyncDisabled is returned by webhook auth when sync is switched off.
	ErrSyncDisabled = errors.New("synchronization is disabled")
)

// ValidationError names the payload fields that failed validation.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "missing required field(s): " + strings.Join(e.Fields, ", ")
}

// Is makes a *ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ErrorType returns a short label for err used in sync log entries.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrAuthentication):
		return "AuthenticationError"
	case errors.Is(err, ErrNotFound):
		return "NotFoundError"
	case errors.Is(err, ErrConfiguration):
		return "ConfigurationError"
	case errors.Is(err, ErrRemoteRejection):
		return "RemoteRejectionError"
	case errors.Is(err, ErrTransientNetwork):
		return "TransientNetworkError"
	case errors.Is(err, ErrConflict):
		return "ConflictError"
	default:
		return "InternalError"
	}
}
