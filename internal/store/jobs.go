package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/johnwards/flyoutsync/internal/domain"
)

// JobStore persists deferred jobs for the background worker.
type JobStore interface {
	Enqueue(ctx context.Context, name string, payload []byte, runAt time.Time) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, status domain.JobStatus, limit int) ([]*domain.Job, error)
	ClaimDue(ctx context.Context, at time.Time, limit int) ([]*domain.Job, error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id, message string) error
	RequeueRunning(ctx context.Context) (int64, error)
}

// SQLiteJobStore implements JobStore backed by SQLite.
type SQLiteJobStore struct {
	db *sql.DB
}

// NewSQLiteJobStore creates a new SQLiteJobStore.
func NewSQLiteJobStore(db *sql.DB) *SQLiteJobStore {
	return &SQLiteJobStore{db: db}
}

const jobColumns = `id, name, payload, status, run_at, attempts, COALESCE(last_error, ''), created_at, updated_at`

func scanJob(row scanner) (*domain.Job, error) {
	var j domain.Job
	var payload string
	if err := row.Scan(&j.ID, &j.Name, &payload, &j.Status, &j.RunAt, &j.Attempts, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Payload = []byte(payload)
	return &j, nil
}

// Enqueue stores a pending job that becomes due at runAt.
func (s *SQLiteJobStore) Enqueue(ctx context.Context, name string, payload []byte, runAt time.Time) (*domain.Job, error) {
	id := newID()
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, name, payload, status, run_at, created_at, updated_at) VALUES (?, ?, ?, 'pending', ?, ?, ?)`,
		id, name, string(payload), formatTime(runAt), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue job %s: %w", name, err)
	}
	return s.Get(ctx, id)
}

// Get retrieves a job by id.
func (s *SQLiteJobStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return j, nil
}

// List returns jobs in the given status (all when empty), soonest first.
func (s *SQLiteJobStore) List(ctx context.Context, status domain.JobStatus, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY run_at ASC, seq ASC LIMIT ?`
	args = append(args, limit)
	return s.queryJobs(ctx, query, args...)
}

// ClaimDue moves up to limit due pending jobs to running and returns them.
// Each claim is a conditional update, so a job is handed out once per
// pending period.
func (s *SQLiteJobStore) ClaimDue(ctx context.Context, at time.Time, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 10
	}
	due, err := s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = 'pending' AND run_at <= ? ORDER BY run_at ASC, seq ASC LIMIT ?`,
		formatTime(at), limit,
	)
	if err != nil {
		return nil, err
	}

	var claimed []*domain.Job
	for _, j := range due {
		res, err := s.db.ExecContext(ctx,
			`UPDATE jobs SET status = 'running', attempts = attempts + 1, updated_at = ? WHERE id = ? AND status = 'pending'`,
			now(), j.ID,
		)
		if err != nil {
			return claimed, fmt.Errorf("claim job %s: %w", j.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		j.Status = domain.JobRunning
		j.Attempts++
		claimed = append(claimed, j)
	}
	return claimed, nil
}

// Complete marks a running job done.
func (s *SQLiteJobStore) Complete(ctx context.Context, id string) error {
	return s.finish(ctx, id, domain.JobDone, "")
}

// Fail marks a running job failed with message.
func (s *SQLiteJobStore) Fail(ctx context.Context, id, message string) error {
	return s.finish(ctx, id, domain.JobFailed, message)
}

func (s *SQLiteJobStore) finish(ctx context.Context, id string, status domain.JobStatus, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		status, nullString(message), now(), id,
	)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	return nil
}

// RequeueRunning returns jobs left running by a previous process to
// pending. This is what makes delivery at-least-once.
func (s *SQLiteJobStore) RequeueRunning(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'pending', updated_at = ? WHERE status = 'running'`, now())
	if err != nil {
		return 0, fmt.Errorf("requeue running jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *SQLiteJobStore) queryJobs(ctx context.Context, query string, args ...any) ([]*domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return jobs, nil
}
