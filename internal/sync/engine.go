// Package sync keeps local records and FlyOut in step: it applies inbound
// webhooks, pushes local status changes, and retries failed pushes later.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/johnwards/flyoutsync/internal/domain"
	"github.com/johnwards/flyoutsync/internal/flyout"
	"github.com/johnwards/flyoutsync/internal/jobs"
	"github.com/johnwards/flyoutsync/internal/store"
)

// RetryJob is the job name of a deferred push retry.
const RetryJob = "sync.retry"

// Doer sends a request to FlyOut.
type Doer interface {
	Do(ctx context.Context, req flyout.Request) (*flyout.Response, error)
}

// Enqueuer defers a job.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any, delay time.Duration) (*domain.Job, error)
}

// Config tunes the sync engine. Zero values take the defaults below.
type Config struct {
	StatusMaps domain.StatusMaps

	HTTPMaxRetries int           // 3
	HTTPRetryDelay time.Duration // 2s
	HTTPTimeout    time.Duration // 30s

	RetryBaseDelay      time.Duration // 5m
	RetryMaxDelay       time.Duration // 1h
	MaxScheduledRetries int           // 5

	Now func() time.Time
}

func (c *Config) defaults() {
	if c.StatusMaps == nil {
		c.StatusMaps = domain.DefaultStatusMaps()
	}
	if c.HTTPMaxRetries <= 0 {
		c.HTTPMaxRetries = flyout.DefaultMaxRetries
	}
	if c.HTTPRetryDelay <= 0 {
		c.HTTPRetryDelay = flyout.DefaultRetryDelay
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = flyout.DefaultTimeout
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 300 * time.Second
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = time.Hour
	}
	if c.MaxScheduledRetries <= 0 {
		c.MaxScheduledRetries = 5
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Engine wires the sync components together.
type Engine struct {
	Inbound     *InboundHandler
	Pusher      *Pusher
	Scheduler   *Scheduler
	Coordinator *Coordinator
}

// New builds an Engine over s.
func New(s *store.Store, client Doer, queue Enqueuer, cfg Config) *Engine {
	cfg.defaults()

	pusher := &Pusher{
		logs:     s.SyncLogs,
		records:  s.Records,
		settings: s.Settings,
		client:   client,
		cfg:      cfg,
	}
	scheduler := &Scheduler{
		logs:       s.SyncLogs,
		records:    s.Records,
		settings:   s.Settings,
		queue:      queue,
		pusher:     pusher,
		baseDelay:  cfg.RetryBaseDelay,
		maxDelay:   cfg.RetryMaxDelay,
		maxRetries: cfg.MaxScheduledRetries,
	}
	pusher.scheduler = scheduler

	coord := &Coordinator{
		records:  s.Records,
		settings: s.Settings,
		pusher:   pusher,
	}

	return &Engine{
		Inbound: &InboundHandler{
			logs:    s.SyncLogs,
			records: s.Records,
			coord:   coord,
			maps:    cfg.StatusMaps,
			now:     cfg.Now,
		},
		Pusher:      pusher,
		Scheduler:   scheduler,
		Coordinator: coord,
	}
}

// RegisterJobs binds the retry job handler on w.
func (e *Engine) RegisterJobs(w *jobs.Worker) {
	w.Register(RetryJob, func(ctx context.Context, payload json.RawMessage) error {
		var p RetryPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", RetryJob, err)
		}
		_, err := e.Scheduler.RetryTask(ctx, p)
		return err
	})
}
