package store

import "database/sql"

// Store holds all sub-stores used by the application.
type Store struct {
	DB       *sql.DB
	Records  RecordStore
	SyncLogs SyncLogStore
	Settings SettingsStore
	Jobs     JobStore
}

// New creates a Store with all sub-stores initialized.
func New(db *sql.DB) *Store {
	return &Store{
		DB:       db,
		Records:  NewSQLiteRecordStore(db),
		SyncLogs: NewSQLiteSyncLogStore(db),
		Settings: NewSQLiteSettingsStore(db),
		Jobs:     NewSQLiteJobStore(db),
	}
}
