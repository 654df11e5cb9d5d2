package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/johnwards/flyoutsync/internal/domain"
)

// SettingsStore persists the single FlyOut settings row.
type SettingsStore interface {
	Get(ctx context.Context) (*domain.Settings, error)
	Save(ctx context.Context, s *domain.Settings) (*domain.Settings, error)
	RecordSuccess(ctx context.Context, at time.Time) error
	RecordFailure(ctx context.Context) error
}

// SQLiteSettingsStore implements SettingsStore backed by SQLite.
type SQLiteSettingsStore struct {
	db *sql.DB
}

// NewSQLiteSettingsStore creates a new SQLiteSettingsStore.
func NewSQLiteSettingsStore(db *sql.DB) *SQLiteSettingsStore {
	return &SQLiteSettingsStore{db: db}
}

// Get returns the stored settings. Before the first save it returns
// disabled, unconfigured settings.
func (s *SQLiteSettingsStore) Get(ctx context.Context) (*domain.Settings, error) {
	var st domain.Settings
	var lastSync sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT base_url, api_key, enable_sync, sync_status, last_sync_at, updated_at FROM settings WHERE id = 1`,
	).Scan(&st.BaseURL, &st.APIKey, &st.EnableSync, &st.SyncStatus, &lastSync, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.Settings{SyncStatus: domain.SyncNotConfigured}, nil
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	st.LastSyncAt = lastSync.String
	return &st, nil
}

// Save normalizes and stores st.
func (s *SQLiteSettingsStore) Save(ctx context.Context, st *domain.Settings) (*domain.Settings, error) {
	if err := st.Normalize(); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (id, base_url, api_key, enable_sync, sync_status, last_sync_at, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET base_url = excluded.base_url, api_key = excluded.api_key,
			enable_sync = excluded.enable_sync, sync_status = excluded.sync_status,
			last_sync_at = excluded.last_sync_at, updated_at = excluded.updated_at`,
		st.BaseURL, st.APIKey, st.EnableSync, st.SyncStatus, nullString(st.LastSyncAt), now(),
	)
	if err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return s.Get(ctx)
}

// RecordSuccess marks the integration Active and stamps the last sync time.
func (s *SQLiteSettingsStore) RecordSuccess(ctx context.Context, at time.Time) error {
	return s.setStatus(ctx, domain.SyncActive, formatTime(at))
}

// RecordFailure marks the integration as erroring.
func (s *SQLiteSettingsStore) RecordFailure(ctx context.Context) error {
	return s.setStatus(ctx, domain.SyncError, "")
}

func (s *SQLiteSettingsStore) setStatus(ctx context.Context, status domain.SyncStatus, lastSync string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE settings SET sync_status = ?, last_sync_at = COALESCE(?, last_sync_at), updated_at = ? WHERE id = 1`,
		status, nullString(lastSync), now(),
	)
	if err != nil {
		return fmt.Errorf("update sync status: %w", err)
	}
	return nil
}
