package api_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johnwards/flyoutsync/internal/api"
	"github.com/johnwards/flyoutsync/internal/domain"
)

func TestNewNotFoundError(t *testing.T) {
	err := api.NewNotFoundError("record not found", "abc-123")

	if err.Status != "error" {
		t.Errorf("Status = %q, want %q", err.Status, "error")
	}
	if err.Category != api.CategoryObjectNotFound {
		t.Errorf("Category = %q, want %q", err.Category, api.CategoryObjectNotFound)
	}
	if err.CorrelationID != "abc-123" {
		t.Errorf("CorrelationID = %q, want %q", err.CorrelationID, "abc-123")
	}
	if err.Message != "record not found" {
		t.Errorf("Message = %q, want %q", err.Message, "record not found")
	}
}

func TestNewValidationError(t *testing.T) {
	details := []api.ErrorDetail{
		{Message: "field is required", Code: "REQUIRED"},
	}
	err := api.NewValidationError("invalid input", "def-456", details)

	if err.Category != api.CategoryValidationError {
		t.Errorf("Category = %q, want %q", err.Category, api.CategoryValidationError)
	}
	if len(err.Errors) != 1 {
		t.Fatalf("Errors length = %d, want 1", len(err.Errors))
	}
	if err.Errors[0].Code != "REQUIRED" {
		t.Errorf("Errors[0].Code = %q, want %q", err.Errors[0].Code, "REQUIRED")
	}
}

func TestWriteErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	apiErr := api.NewNotFoundError("not found", "test-id")

	api.WriteError(rec, http.StatusNotFound, apiErr)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusNotFound)
	}

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var result map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if result["correlationId"] != "test-id" {
		t.Errorf("correlationId = %v, want %q", result["correlationId"], "test-id")
	}
	if result["success"] != false {
		t.Errorf("success = %v, want false", result["success"])
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		category string
	}{
		{&domain.ValidationError{Fields: []string{"email"}}, http.StatusBadRequest, api.CategoryValidationError},
		{fmt.Errorf("bad cursor: %w", domain.ErrValidation), http.StatusBadRequest, api.CategoryValidationError},
		{domain.ErrAuthentication, http.StatusUnauthorized, api.CategoryAuthentication},
		{domain.ErrSyncDisabled, http.StatusForbidden, api.CategoryForbidden},
		{fmt.Errorf("record x: %w", domain.ErrNotFound), http.StatusNotFound, api.CategoryObjectNotFound},
		{domain.ErrConflict, http.StatusConflict, api.CategoryConflict},
		{domain.ErrConfiguration, http.StatusUnprocessableEntity, api.CategoryConfigurationError},
		{domain.ErrTransientNetwork, http.StatusBadGateway, api.CategoryRemoteError},
		{errors.New("disk full"), http.StatusInternalServerError, api.CategoryInternalError},
	}
	for _, tt := range tests {
		status, apiErr := api.FromError(tt.err, "c")
		if status != tt.status || apiErr.Category != tt.category {
			t.Errorf("FromError(%v) = %d %s, want %d %s", tt.err, status, apiErr.Category, tt.status, tt.category)
		}
	}

	_, apiErr := api.FromError(&domain.ValidationError{Fields: []string{"email", "service_type"}}, "c")
	if len(apiErr.Errors) != 2 || apiErr.Errors[1].In != "service_type" {
		t.Errorf("details = %+v", apiErr.Errors)
	}
}
