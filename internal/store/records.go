package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/johnwards/flyoutsync/internal/database"
	"github.com/johnwards/flyoutsync/internal/domain"
)

// RecordStore defines the interface for synchronized record persistence.
type RecordStore interface {
	Create(ctx context.Context, rec *domain.Record) (*domain.Record, error)
	Get(ctx context.Context, id string) (*domain.Record, error)
	GetByRemoteID(ctx context.Context, entityType domain.EntityType, remoteID string) (*domain.Record, error)
	Update(ctx context.Context, rec *domain.Record, comments ...domain.Comment) (*domain.Record, error)
	Comments(ctx context.Context, recordID string) ([]domain.Comment, error)
	Count(ctx context.Context, entityType domain.EntityType) (int, error)
}

// SQLiteRecordStore implements RecordStore backed by SQLite. Syncable fields
// live in record_fields, one row per field.
type SQLiteRecordStore struct {
	db *sql.DB
}

// NewSQLiteRecordStore creates a new SQLiteRecordStore.
func NewSQLiteRecordStore(db *sql.DB) *SQLiteRecordStore {
	return &SQLiteRecordStore{db: db}
}

// Create inserts rec with a fresh local id and version 1.
func (s *SQLiteRecordStore) Create(ctx context.Context, rec *domain.Record) (*domain.Record, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	id := rec.ID
	if id == "" {
		id = newID()
	}
	ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create record: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (id, entity_type, remote_id, origin, status, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		id, rec.EntityType, nullString(rec.RemoteID), rec.Origin, rec.Status, ts, ts,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%s with remote id %q already exists: %w", rec.EntityType, rec.RemoteID, domain.ErrConflict)
		}
		return nil, fmt.Errorf("insert record: %w", err)
	}

	if err := setFields(ctx, tx, id, rec.Fields, ts); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create record: %w", err)
	}

	return s.Get(ctx, id)
}

// Get retrieves a record and all of its fields by local id.
func (s *SQLiteRecordStore) Get(ctx context.Context, id string) (*domain.Record, error) {
	return getRecord(ctx, s.db, `WHERE id = ?`, id)
}

// GetByRemoteID looks up a record by its FlyOut id.
func (s *SQLiteRecordStore) GetByRemoteID(ctx context.Context, entityType domain.EntityType, remoteID string) (*domain.Record, error) {
	if remoteID == "" {
		return nil, fmt.Errorf("empty remote id: %w", domain.ErrNotFound)
	}
	return getRecord(ctx, s.db, `WHERE entity_type = ? AND remote_id = ?`, entityType, remoteID)
}

// Update writes rec if its Version still matches the stored version, bumping
// the version by one. Comments are inserted in the same transaction. Origin
// may only move from Local to Remote.
func (s *SQLiteRecordStore) Update(ctx context.Context, rec *domain.Record, comments ...domain.Comment) (*domain.Record, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update record: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var curOrigin domain.Origin
	var curType domain.EntityType
	var curVersion int64
	err = tx.QueryRowContext(ctx,
		`SELECT entity_type, origin, version FROM records WHERE id = ?`, rec.ID,
	).Scan(&curType, &curOrigin, &curVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %s: %w", rec.ID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load record %s: %w", rec.ID, err)
	}
	if curVersion != rec.Version {
		return nil, fmt.Errorf("record %s changed (version %d, have %d): %w", rec.ID, curVersion, rec.Version, domain.ErrConflict)
	}
	if curType != rec.EntityType {
		return nil, fmt.Errorf("record %s is a %s, not a %s: %w", rec.ID, curType, rec.EntityType, domain.ErrValidation)
	}
	if curOrigin == domain.OriginRemote && rec.Origin != domain.OriginRemote {
		return nil, fmt.Errorf("record %s: origin cannot change from Remote: %w", rec.ID, domain.ErrValidation)
	}

	ts := now()
	_, err = tx.ExecContext(ctx,
		`UPDATE records SET remote_id = ?, origin = ?, status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		nullString(rec.RemoteID), rec.Origin, rec.Status, ts, rec.ID, rec.Version,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%s with remote id %q already exists: %w", rec.EntityType, rec.RemoteID, domain.ErrConflict)
		}
		return nil, fmt.Errorf("update record %s: %w", rec.ID, err)
	}

	if err := setFields(ctx, tx, rec.ID, rec.Fields, ts); err != nil {
		return nil, err
	}

	for _, c := range comments {
		kind := c.Kind
		if kind == "" {
			kind = "Info"
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO record_comments (record_id, kind, body, created_at) VALUES (?, ?, ?, ?)`,
			rec.ID, kind, c.Body, ts,
		); err != nil {
			return nil, fmt.Errorf("insert comment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update record: %w", err)
	}

	return s.Get(ctx, rec.ID)
}

// Comments returns the audit comments of a record, oldest first.
func (s *SQLiteRecordStore) Comments(ctx context.Context, recordID string) ([]domain.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record_id, kind, body, created_at FROM record_comments WHERE record_id = ? ORDER BY id ASC`,
		recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.RecordID, &c.Kind, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// Count returns the number of records of entityType.
func (s *SQLiteRecordStore) Count(ctx context.Context, entityType domain.EntityType) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE entity_type = ?`, entityType,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getRecord(ctx context.Context, q queryer, where string, args ...any) (*domain.Record, error) {
	var rec domain.Record
	var remoteID sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, entity_type, remote_id, origin, status, version, created_at, updated_at FROM records `+where,
		args...,
	).Scan(&rec.ID, &rec.EntityType, &remoteID, &rec.Origin, &rec.Status, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	rec.RemoteID = remoteID.String

	rows, err := q.QueryContext(ctx, `SELECT name, COALESCE(value, '') FROM record_fields WHERE record_id = ?`, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("get record fields: %w", err)
	}
	defer func() { _ = rows.Close() }()

	rec.Fields = make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		rec.Fields[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return &rec, nil
}

func setFields(ctx context.Context, tx *sql.Tx, recordID string, fields map[string]string, ts string) error {
	for name, value := range fields {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO record_fields (record_id, name, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(record_id, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
			 WHERE record_fields.value IS NOT excluded.value`,
			recordID, name, value, ts,
		)
		if err != nil {
			return fmt.Errorf("set field %s: %w", name, err)
		}
	}
	return nil
}
