package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/johnwards/flyoutsync/internal/domain"
)

// SyncLogStore persists the append-only sync audit ledger. After an entry is
// resolved only its retry bookkeeping may change.
type SyncLogStore interface {
	Insert(ctx context.Context, e *domain.SyncLogEntry) (*domain.SyncLogEntry, error)
	Resolve(ctx context.Context, id string, res domain.LogResolution) (*domain.SyncLogEntry, error)
	Get(ctx context.Context, id string) (*domain.SyncLogEntry, error)
	List(ctx context.Context, f domain.LogFilter) (*domain.LogPage, error)
	LatestUnscheduledError(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.SyncLogEntry, error)
	MarkRetryScheduled(ctx context.Context, id string) (bool, error)
	ClearRetryScheduled(ctx context.Context, id string) error
	BeginRetry(ctx context.Context, id string) (*domain.SyncLogEntry, bool, error)
}

// SQLiteSyncLogStore implements SyncLogStore backed by SQLite.
type SQLiteSyncLogStore struct {
	db *sql.DB
}

// NewSQLiteSyncLogStore creates a new SQLiteSyncLogStore.
func NewSQLiteSyncLogStore(db *sql.DB) *SQLiteSyncLogStore {
	return &SQLiteSyncLogStore{db: db}
}

const logColumns = `id, direction, status, COALESCE(entity_type, ''), COALESCE(entity_id, ''), COALESCE(remote_id, ''),
	COALESCE(endpoint, ''), COALESCE(method, ''), COALESCE(request_payload, ''), COALESCE(response_payload, ''),
	COALESCE(error_type, ''), COALESCE(error_message, ''), retry_scheduled, retry_count, created_at, COALESCE(resolved_at, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanLog(row scanner) (*domain.SyncLogEntry, error) {
	var e domain.SyncLogEntry
	err := row.Scan(&e.ID, &e.Direction, &e.Status, &e.EntityType, &e.EntityID, &e.RemoteID,
		&e.Endpoint, &e.Method, &e.RequestPayload, &e.ResponsePayload,
		&e.ErrorType, &e.ErrorMessage, &e.RetryScheduled, &e.RetryCount, &e.CreatedAt, &e.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Insert appends a new entry. A terminal entry is stamped as resolved at
// insert time.
func (s *SQLiteSyncLogStore) Insert(ctx context.Context, e *domain.SyncLogEntry) (*domain.SyncLogEntry, error) {
	switch e.Direction {
	case domain.DirectionInbound, domain.DirectionOutbound:
	default:
		return nil, fmt.Errorf("invalid sync log direction %q: %w", e.Direction, domain.ErrValidation)
	}
	if e.Status == "" {
		return nil, fmt.Errorf("sync log status required: %w", domain.ErrValidation)
	}

	id := newID()
	ts := now()
	resolvedAt := ""
	if e.Status.Terminal() {
		resolvedAt = ts
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_logs (id, direction, status, entity_type, entity_id, remote_id, endpoint, method,
			request_payload, response_payload, error_type, error_message, retry_scheduled, retry_count, created_at, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.Direction, e.Status, nullString(string(e.EntityType)), nullString(e.EntityID), nullString(e.RemoteID),
		nullString(e.Endpoint), nullString(e.Method), nullString(e.RequestPayload), nullString(e.ResponsePayload),
		nullString(e.ErrorType), nullString(e.ErrorMessage), e.RetryScheduled, e.RetryCount, ts, nullString(resolvedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert sync log: %w", err)
	}

	return s.Get(ctx, id)
}

// Resolve moves a pending entry to its terminal status. It fails with
// ErrLogFinalized if the entry was already resolved.
func (s *SQLiteSyncLogStore) Resolve(ctx context.Context, id string, res domain.LogResolution) (*domain.SyncLogEntry, error) {
	if !res.Status.Terminal() {
		return nil, fmt.Errorf("resolve sync log %s to non-terminal status %q: %w", id, res.Status, domain.ErrValidation)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE sync_logs SET status = ?,
			entity_type = COALESCE(?, entity_type),
			entity_id = COALESCE(?, entity_id),
			response_payload = ?, error_type = ?, error_message = ?, resolved_at = ?
		 WHERE id = ? AND status IN ('Received', 'Attempting')`,
		res.Status, nullString(string(res.EntityType)), nullString(res.EntityID),
		nullString(res.ResponsePayload), nullString(res.ErrorType), nullString(res.ErrorMessage), now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve sync log %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("sync log %s: %w", id, domain.ErrLogFinalized)
	}

	return s.Get(ctx, id)
}

// Get retrieves one entry by id.
func (s *SQLiteSyncLogStore) Get(ctx context.Context, id string) (*domain.SyncLogEntry, error) {
	e, err := scanLog(s.db.QueryRowContext(ctx, `SELECT `+logColumns+` FROM sync_logs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sync log %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get sync log %s: %w", id, err)
	}
	return e, nil
}

// List returns entries newest first with cursor-based pagination.
func (s *SQLiteSyncLogStore) List(ctx context.Context, f domain.LogFilter) (*domain.LogPage, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}

	query := `SELECT seq, ` + logColumns + ` FROM sync_logs WHERE 1 = 1`
	var args []any
	if f.Direction != "" {
		query += ` AND direction = ?`
		args = append(args, f.Direction)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.EntityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, f.EntityType)
	}
	if f.EntityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, f.EntityID)
	}
	if f.RemoteID != "" {
		query += ` AND remote_id = ?`
		args = append(args, f.RemoteID)
	}
	if f.Before != "" {
		before, err := strconv.ParseInt(f.Before, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor %q: %w", f.Before, domain.ErrValidation)
		}
		query += ` AND seq < ?`
		args = append(args, before)
	}

	// Fetch one extra to determine if there is a next page.
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, f.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sync logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	page := &domain.LogPage{}
	var seqs []int64
	for rows.Next() {
		var seq int64
		var e domain.SyncLogEntry
		err := rows.Scan(&seq, &e.ID, &e.Direction, &e.Status, &e.EntityType, &e.EntityID, &e.RemoteID,
			&e.Endpoint, &e.Method, &e.RequestPayload, &e.ResponsePayload,
			&e.ErrorType, &e.ErrorMessage, &e.RetryScheduled, &e.RetryCount, &e.CreatedAt, &e.ResolvedAt)
		if err != nil {
			return nil, fmt.Errorf("scan sync log: %w", err)
		}
		seqs = append(seqs, seq)
		page.Results = append(page.Results, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	if len(page.Results) > f.Limit {
		page.HasMore = true
		page.After = strconv.FormatInt(seqs[f.Limit-1], 10)
		page.Results = page.Results[:f.Limit]
	}

	return page, nil
}

// LatestUnscheduledError returns the most recent outbound Error entry for the
// record that has no retry scheduled yet.
func (s *SQLiteSyncLogStore) LatestUnscheduledError(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.SyncLogEntry, error) {
	e, err := scanLog(s.db.QueryRowContext(ctx,
		`SELECT `+logColumns+` FROM sync_logs
		 WHERE entity_type = ? AND entity_id = ? AND direction = 'Outbound' AND status = 'Error' AND retry_scheduled = FALSE
		 ORDER BY seq DESC LIMIT 1`,
		entityType, entityID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no unscheduled error for %s %s: %w", entityType, entityID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("latest unscheduled error: %w", err)
	}
	return e, nil
}

// MarkRetryScheduled sets retry_scheduled on an Error entry. It reports false
// when the entry was already scheduled, so one failure is scheduled once.
func (s *SQLiteSyncLogStore) MarkRetryScheduled(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sync_logs SET retry_scheduled = TRUE WHERE id = ? AND status = 'Error' AND retry_scheduled = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("mark retry scheduled %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// ClearRetryScheduled unsets retry_scheduled, used when enqueueing failed.
func (s *SQLiteSyncLogStore) ClearRetryScheduled(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE sync_logs SET retry_scheduled = FALSE WHERE id = ?`, id); err != nil {
		return fmt.Errorf("clear retry scheduled %s: %w", id, err)
	}
	return nil
}

// BeginRetry increments retry_count and clears retry_scheduled in one step.
// It only applies while a retry is scheduled; a duplicate delivery of the
// same retry job gets false and must not push again.
func (s *SQLiteSyncLogStore) BeginRetry(ctx context.Context, id string) (*domain.SyncLogEntry, bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sync_logs SET retry_count = retry_count + 1, retry_scheduled = FALSE
		 WHERE id = ? AND retry_scheduled = TRUE`, id)
	if err != nil {
		return nil, false, fmt.Errorf("begin retry %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return e, n > 0, nil
}
