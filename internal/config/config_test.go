package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/johnwards/flyoutsync/internal/config"
	"github.com/johnwards/flyoutsync/internal/domain"
)

var configEnv = []string{
	"FLYOUT_ADDR", "FLYOUT_DB", "FLYOUT_ADMIN_TOKEN", "FLYOUT_BASE_URL", "FLYOUT_API_KEY",
	"FLYOUT_ENABLE_SYNC", "FLYOUT_LOG_LEVEL", "FLYOUT_LOG_FORMAT", "FLYOUT_LOG_FILE",
	"FLYOUT_STATUS_MAP", "FLYOUT_HTTP_TIMEOUT", "FLYOUT_HTTP_MAX_RETRIES", "FLYOUT_HTTP_RETRY_DELAY",
	"FLYOUT_RATE_LIMIT", "FLYOUT_RETRY_DELAY", "FLYOUT_RETRY_MAX_DELAY",
	"FLYOUT_MAX_SCHEDULED_RETRIES", "FLYOUT_WORKER_POLL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, ":8080")
	}
	if cfg.DBPath != "flyoutsync.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "flyoutsync.db")
	}
	if cfg.AdminToken != "" {
		t.Errorf("AdminToken = %q, want empty", cfg.AdminToken)
	}
	if cfg.EnableSync {
		t.Error("EnableSync = true, want false")
	}
	if cfg.HTTPTimeout != 30*time.Second || cfg.HTTPMaxRetries != 3 || cfg.HTTPRetryDelay != 2*time.Second {
		t.Errorf("http defaults = %v/%d/%v", cfg.HTTPTimeout, cfg.HTTPMaxRetries, cfg.HTTPRetryDelay)
	}
	if cfg.RetryDelay != 5*time.Minute || cfg.RetryMaxDelay != time.Hour || cfg.MaxScheduledRetries != 5 {
		t.Errorf("retry defaults = %v/%v/%d", cfg.RetryDelay, cfg.RetryMaxDelay, cfg.MaxScheduledRetries)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log defaults = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLYOUT_ADDR", ":9090")
	t.Setenv("FLYOUT_DB", "/tmp/test.db")
	t.Setenv("FLYOUT_ADMIN_TOKEN", "secret-token")
	t.Setenv("FLYOUT_ENABLE_SYNC", "true")
	t.Setenv("FLYOUT_HTTP_MAX_RETRIES", "5")
	t.Setenv("FLYOUT_RETRY_DELAY", "90s")
	t.Setenv("FLYOUT_RATE_LIMIT", "0.5")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, ":9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.AdminToken != "secret-token" {
		t.Errorf("AdminToken = %q, want %q", cfg.AdminToken, "secret-token")
	}
	if !cfg.EnableSync {
		t.Error("EnableSync = false, want true")
	}
	if cfg.HTTPMaxRetries != 5 {
		t.Errorf("HTTPMaxRetries = %d, want 5", cfg.HTTPMaxRetries)
	}
	if cfg.RetryDelay != 90*time.Second {
		t.Errorf("RetryDelay = %v, want 90s", cfg.RetryDelay)
	}
	if cfg.RateLimit != 0.5 {
		t.Errorf("RateLimit = %v, want 0.5", cfg.RateLimit)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLYOUT_HTTP_TIMEOUT", "soon")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestLoadStatusMapsDefault(t *testing.T) {
	maps, err := config.LoadStatusMaps("")
	if err != nil {
		t.Fatalf("LoadStatusMaps: %v", err)
	}
	code, err := maps.RemoteCode(domain.EntityInquiry, domain.StatusUnderReview)
	if err != nil || code != "UNDER_REVIEW" {
		t.Errorf("RemoteCode = %q, %v", code, err)
	}
}

func TestLoadStatusMapsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.yaml")
	yml := `inquiry:
  inbound:
    Withdrawn: Rejected
  outbound:
    New: OPEN
    Under Review: REVIEW
    Converted: WON
    Rejected: LOST
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	maps, err := config.LoadStatusMaps(path)
	if err != nil {
		t.Fatalf("LoadStatusMaps: %v", err)
	}

	if s, ok := maps.LocalStatus(domain.EntityInquiry, "Withdrawn"); !ok || s != domain.StatusRejected {
		t.Errorf("LocalStatus(Withdrawn) = %q, %v", s, ok)
	}
	if _, ok := maps.LocalStatus(domain.EntityInquiry, "Cancelled"); ok {
		t.Error("override should replace the inquiry inbound table")
	}
	if code, _ := maps.RemoteCode(domain.EntityClient, domain.StatusActive); code != "ACTIVE" {
		t.Errorf("client table should keep defaults, got %q", code)
	}
}

func TestLoadStatusMapsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.yaml")
	yml := `client:
  outbound:
    Active: ACTIVE
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := config.LoadStatusMaps(path)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}
