package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/johnwards/flyoutsync/internal/domain"
)

// Error categories.
const (
	CategoryValidationError    = "VALIDATION_ERROR"
	CategoryObjectNotFound     = "OBJECT_NOT_FOUND"
	CategoryConflict           = "CONFLICT"
	CategoryAuthentication     = "AUTHENTICATION_ERROR"
	CategoryForbidden          = "FORBIDDEN"
	CategoryConfigurationError = "CONFIGURATION_ERROR"
	CategoryRemoteError        = "REMOTE_ERROR"
	CategoryInternalError      = "INTERNAL_ERROR"
)

// Error is the JSON error body returned by every endpoint.
type Error struct {
	Success       bool          `json:"success"`
	Status        string        `json:"status"`
	Message       string        `json:"message"`
	CorrelationID string        `json:"correlationId"`
	Category      string        `json:"category"`
	LogID         string        `json:"log_id,omitempty"`
	Errors        []ErrorDetail `json:"errors,omitempty"`
}

// ErrorDetail represents a single error within an Error.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	In      string `json:"in,omitempty"`
}

// NewNotFoundError creates a 404 error with the OBJECT_NOT_FOUND category.
func NewNotFoundError(message, correlationID string) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryObjectNotFound,
	}
}

// NewValidationError creates a 400 error with the VALIDATION_ERROR category.
func NewValidationError(message, correlationID string, details []ErrorDetail) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryValidationError,
		Errors:        details,
	}
}

// NewConflictError creates a 409 error with the CONFLICT category.
func NewConflictError(message, correlationID string) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryConflict,
	}
}

// WriteError writes an Error as a JSON response with the given HTTP status code.
func WriteError(w http.ResponseWriter, statusCode int, apiErr *Error) {
	apiErr.Success = false
	WriteJSON(w, statusCode, apiErr)
}

// FromError maps err onto an HTTP status and Error using the domain error
// taxonomy.
func FromError(err error, correlationID string) (int, *Error) {
	e := &Error{Status: "error", Message: err.Error(), CorrelationID: correlationID}

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		e.Category = CategoryValidationError
		for _, f := range ve.Fields {
			e.Errors = append(e.Errors, ErrorDetail{Message: ve.Error(), Code: "INVALID_FIELD", In: f})
		}
		return http.StatusBadRequest, e
	case errors.Is(err, domain.ErrValidation):
		e.Category = CategoryValidationError
		return http.StatusBadRequest, e
	case errors.Is(err, domain.ErrAuthentication):
		e.Category = CategoryAuthentication
		return http.StatusUnauthorized, e
	case errors.Is(err, domain.ErrSyncDisabled):
		e.Category = CategoryForbidden
		return http.StatusForbidden, e
	case errors.Is(err, domain.ErrNotFound):
		e.Category = CategoryObjectNotFound
		return http.StatusNotFound, e
	case errors.Is(err, domain.ErrConflict):
		e.Category = CategoryConflict
		return http.StatusConflict, e
	case errors.Is(err, domain.ErrConfiguration):
		e.Category = CategoryConfigurationError
		return http.StatusUnprocessableEntity, e
	case errors.Is(err, domain.ErrRemoteRejection), errors.Is(err, domain.ErrTransientNetwork):
		e.Category = CategoryRemoteError
		return http.StatusBadGateway, e
	default:
		e.Category = CategoryInternalError
		return http.StatusInternalServerError, e
	}
}

// WriteDomainError writes err mapped through FromError.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := FromError(err, CorrelationID(r.Context()))
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	WriteError(w, status, apiErr)
}
