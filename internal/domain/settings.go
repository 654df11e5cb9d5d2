package domain

import (
	"fmt"
	"strings"
)

// SyncStatus summarises the health of the FlyOut integration.
type SyncStatus string

const (
	SyncActive        SyncStatus = "Active"
	SyncError         SyncStatus = "Error"
	SyncNotConfigured SyncStatus = "Not Configured"
)

// Settings holds the FlyOut account configuration.
type Settings struct {
	BaseURL    string     `json:"baseUrl"`
	APIKey     string     `json:"apiKey,omitempty"`
	EnableSync bool       `json:"enableSync"`
	SyncStatus SyncStatus `json:"syncStatus"`
	LastSyncAt string     `json:"lastSyncAt,omitempty"`
	UpdatedAt  string     `json:"updatedAt,omitempty"`
}

// Normalize validates s and derives SyncStatus from the other fields the
// way a settings save does.
func (s *Settings) Normalize() error {
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if s.BaseURL != "" && !strings.HasPrefix(s.BaseURL, "http://") && !strings.HasPrefix(s.BaseURL, "https://") {
		return &ValidationError{Message: "FlyOut base URL must start with http:// or https://", Fields: []string{"baseUrl"}}
	}

	switch {
	case !s.EnableSync:
		s.SyncStatus = SyncNotConfigured
		s.LastSyncAt = ""
	case s.APIKey == "":
		s.SyncStatus = SyncError
	case s.SyncStatus == "" || s.SyncStatus == SyncNotConfigured:
		s.SyncStatus = SyncActive
	}
	return nil
}

// CheckOutbound returns a configuration error when s cannot be used to call
// the partner API.
func (s *Settings) CheckOutbound() error {
	var missing []string
	if s.BaseURL == "" {
		missing = append(missing, "base_url")
	}
	if s.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("sync enabled but %s not set: %w", strings.Join(missing, ", "), ErrConfiguration)
	}
	return nil
}

// Redacted returns a copy of s safe to return from the admin API.
func (s Settings) Redacted() Settings {
	if s.APIKey != "" {
		s.APIKey = "********"
	}
	return s
}
