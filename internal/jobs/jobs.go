// Package jobs is a small persistent deferred-job queue backed by the jobs
// table. Delivery is at-least-once: a job interrupted by a crash runs again.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/johnwards/flyoutsync/internal/domain"
	"github.com/johnwards/flyoutsync/internal/store"
)

// Handler runs one job. A returned error marks the job failed.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Queue enqueues jobs.
type Queue struct {
	store store.JobStore
	now   func() time.Time
}

// NewQueue creates a Queue over js.
func NewQueue(js store.JobStore) *Queue {
	return &Queue{store: js, now: time.Now}
}

// Enqueue stores a job named name that becomes due after delay. payload is
// encoded as JSON.
func (q *Queue) Enqueue(ctx context.Context, name string, payload any, delay time.Duration) (*domain.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return q.store.Enqueue(ctx, name, data, q.now().Add(delay))
}

// WorkerConfig tunes a Worker.
type WorkerConfig struct {
	PollInterval time.Duration // default 1s
	JobTimeout   time.Duration // default 2m
	BatchSize    int           // default 10
}

// Worker polls for due jobs and runs their registered handlers.
type Worker struct {
	store    store.JobStore
	cfg      WorkerConfig
	handlers map[string]Handler
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewWorker creates a Worker over js.
func NewWorker(js store.JobStore, cfg WorkerConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Worker{
		store:    js,
		cfg:      cfg,
		handlers: make(map[string]Handler),
		now:      time.Now,
	}
}

// Register binds name to h. Register before Run.
func (w *Worker) Register(name string, h Handler) {
	w.handlers[name] = h
}

// SetClock replaces the worker's time source.
func (w *Worker) SetClock(now func() time.Time) {
	w.now = now
}

// Run requeues jobs orphaned by a previous process and then polls until ctx
// is done or Stop is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	if n, err := w.store.RequeueRunning(ctx); err != nil {
		slog.Error("requeue interrupted jobs", "error", err)
	} else if n > 0 {
		slog.Info("requeued interrupted jobs", "count", n)
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunDue(ctx); err != nil {
			slog.Error("job poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
		}
	}
}

// Stop ends Run and waits for the job in progress to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
}

// RunDue claims and runs every job due now, one at a time, and returns how
// many ran.
func (w *Worker) RunDue(ctx context.Context) (int, error) {
	ran := 0
	for {
		claimed, err := w.store.ClaimDue(ctx, w.now(), w.cfg.BatchSize)
		if err != nil {
			return ran, err
		}
		if len(claimed) == 0 {
			return ran, nil
		}
		for _, j := range claimed {
			if ctx.Err() != nil {
				return ran, ctx.Err()
			}
			w.execute(ctx, j)
			ran++
		}
	}
}

func (w *Worker) execute(ctx context.Context, j *domain.Job) {
	log := slog.With("job_id", j.ID, "job", j.Name, "attempt", j.Attempts)

	h, ok := w.handlers[j.Name]
	if !ok {
		log.Error("no handler registered for job")
		w.finish(ctx, j, fmt.Errorf("no handler registered for %q", j.Name))
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	err := safeRun(jobCtx, h, j.Payload)
	if err != nil {
		log.Warn("job failed", "error", err)
	} else {
		log.Debug("job done")
	}
	w.finish(ctx, j, err)
}

func (w *Worker) finish(ctx context.Context, j *domain.Job, runErr error) {
	var err error
	if runErr != nil {
		err = w.store.Fail(ctx, j.ID, runErr.Error())
	} else {
		err = w.store.Complete(ctx, j.ID)
	}
	if err != nil {
		slog.Error("record job outcome", "job_id", j.ID, "error", err)
	}
}

func safeRun(ctx context.Context, h Handler, payload json.RawMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return h(ctx, payload)
}
