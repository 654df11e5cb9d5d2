package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/johnwards/flyoutsync/internal/domain"
)

func TestSettingsDefaults(t *testing.T) {
	s := setupStore(t)

	st, err := s.Settings.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if st.EnableSync || st.SyncStatus != domain.SyncNotConfigured {
		t.Errorf("defaults = %+v", st)
	}
}

func TestSettingsSaveNormalizes(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	st, err := s.Settings.Save(ctx, &domain.Settings{BaseURL: "https://flyout.test/", APIKey: "k", EnableSync: true})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if st.BaseURL != "https://flyout.test" {
		t.Errorf("base url = %q", st.BaseURL)
	}
	if st.SyncStatus != domain.SyncActive {
		t.Errorf("status = %q, want Active", st.SyncStatus)
	}

	st, err = s.Settings.Save(ctx, &domain.Settings{BaseURL: "https://flyout.test", EnableSync: true})
	if err != nil {
		t.Fatalf("save without key: %v", err)
	}
	if st.SyncStatus != domain.SyncError {
		t.Errorf("status without key = %q, want Error", st.SyncStatus)
	}

	if _, err := s.Settings.Save(ctx, &domain.Settings{BaseURL: "ftp://flyout.test"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad scheme err = %v, want ErrValidation", err)
	}
}

func TestSettingsRecordOutcome(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if _, err := s.Settings.Save(ctx, &domain.Settings{BaseURL: "https://flyout.test", APIKey: "k", EnableSync: true}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := s.Settings.RecordFailure(ctx); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	st, _ := s.Settings.Get(ctx)
	if st.SyncStatus != domain.SyncError || st.LastSyncAt != "" {
		t.Errorf("after failure = %+v", st)
	}

	at := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	if err := s.Settings.RecordSuccess(ctx, at); err != nil {
		t.Fatalf("record success: %v", err)
	}
	st, _ = s.Settings.Get(ctx)
	if st.SyncStatus != domain.SyncActive || st.LastSyncAt != "2026-10-17T09:30:00.000Z" {
		t.Errorf("after success = %+v", st)
	}

	// A later failure keeps the last successful sync time.
	if err := s.Settings.RecordFailure(ctx); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	st, _ = s.Settings.Get(ctx)
	if st.LastSyncAt != "2026-10-17T09:30:00.000Z" {
		t.Errorf("last sync cleared by failure: %q", st.LastSyncAt)
	}
}
