package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/johnwards/flyoutsync/internal/domain"
	"github.com/johnwards/flyoutsync/internal/store"
)

// RetryPayload is the body of a RetryJob.
type RetryPayload struct {
	EntityType domain.EntityType `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	LogID      string            `json:"log_id"`
}

// Scheduler defers retries of failed pushes through the job queue.
type Scheduler struct {
	logs       store.SyncLogStore
	records    store.RecordStore
	settings   store.SettingsStore
	queue      Enqueuer
	pusher     *Pusher
	baseDelay  time.Duration
	maxDelay   time.Duration
	maxRetries int
}

// Delay returns the deferral before retry number retryCount+1:
// baseDelay * 2^retryCount, capped at maxDelay.
func (s *Scheduler) Delay(retryCount int) time.Duration {
	d := s.baseDelay
	for range retryCount {
		d *= 2
		if d >= s.maxDelay {
			return s.maxDelay
		}
	}
	return min(d, s.maxDelay)
}

// ScheduleRetry enqueues a retry of the failed push recorded in
// failedLogID. With an empty failedLogID the latest unscheduled outbound
// Error entry of the record is used; when there is none nothing happens.
// A zero delay picks Delay(retry_count). It reports whether a retry was
// enqueued.
func (s *Scheduler) ScheduleRetry(ctx context.Context, entityType domain.EntityType, entityID, failedLogID string, delay time.Duration) (bool, error) {
	var entry *domain.SyncLogEntry
	var err error
	if failedLogID == "" {
		entry, err = s.logs.LatestUnscheduledError(ctx, entityType, entityID)
		if errors.Is(err, domain.ErrNotFound) {
			slog.Info("no failed, unscheduled sync log; skipping retry", "entity_type", entityType, "entity_id", entityID)
			return false, nil
		}
	} else {
		entry, err = s.logs.Get(ctx, failedLogID)
	}
	if err != nil {
		return false, err
	}

	log := slog.With("entity_type", entityType, "entity_id", entityID, "log_id", entry.ID)

	if entry.Direction != domain.DirectionOutbound || entry.Status != domain.LogError {
		return false, fmt.Errorf("sync log %s is not a failed push: %w", entry.ID, domain.ErrValidation)
	}
	if entry.RetryCount >= s.maxRetries {
		log.Warn("retry limit reached, not rescheduling", "retry_count", entry.RetryCount, "max", s.maxRetries)
		return false, nil
	}
	if delay <= 0 {
		delay = s.Delay(entry.RetryCount)
	}

	marked, err := s.logs.MarkRetryScheduled(ctx, entry.ID)
	if err != nil {
		return false, err
	}
	if !marked {
		log.Info("retry already scheduled")
		return false, nil
	}

	_, err = s.queue.Enqueue(ctx, RetryJob, RetryPayload{
		EntityType: entityType,
		EntityID:   entityID,
		LogID:      entry.ID,
	}, delay)
	if err != nil {
		if cerr := s.logs.ClearRetryScheduled(ctx, entry.ID); cerr != nil {
			log.Error("unmark retry after enqueue failure", "error", cerr)
		}
		return false, fmt.Errorf("enqueue retry for %s: %w", entry.ID, err)
	}

	log.Info("scheduled retry", "delay", delay.String(), "retry_count", entry.RetryCount)
	return true, nil
}

// RetryTask runs a scheduled retry: it bumps the failed entry's retry count
// and pushes the record's current state. A duplicate delivery of the same
// job is a no-op. The push outcome is recorded in the sync log, so an error
// is returned only when the retry could not run at all.
func (s *Scheduler) RetryTask(ctx context.Context, p RetryPayload) (*Result, error) {
	entry, started, err := s.logs.BeginRetry(ctx, p.LogID)
	if err != nil {
		return nil, err
	}
	if !started {
		slog.Info("retry already taken, skipping", "log_id", p.LogID)
		return nil, nil
	}

	rec, err := s.records.Get(ctx, p.EntityID)
	if err != nil {
		return nil, fmt.Errorf("retry %s %s: %w", p.EntityType, p.EntityID, err)
	}
	if rec.EntityType != p.EntityType {
		return nil, fmt.Errorf("retry %s: record %s is a %s: %w", p.LogID, rec.ID, rec.EntityType, domain.ErrValidation)
	}

	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	slog.Info("retrying push", "entity_type", rec.EntityType, "entity_id", rec.ID, "log_id", p.LogID, "retry_count", entry.RetryCount)
	res, err := s.pusher.push(ctx, rec, st, entry.RetryCount)
	if res == nil || (err != nil && res.LogID == "") {
		return res, err
	}
	return res, nil
}
