package sync_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/johnwards/flyoutsync/internal/domain"
	"github.com/johnwards/flyoutsync/internal/flyout"
	"github.com/johnwards/flyoutsync/internal/jobs"
	"github.com/johnwards/flyoutsync/internal/store"
	flysync "github.com/johnwards/flyoutsync/internal/sync"
	"github.com/johnwards/flyoutsync/internal/testhelpers"
)

// fakeFlyOut records the requests it receives and answers with status.
type fakeFlyOut struct {
	mu       gosync.Mutex
	status   int
	body     string
	requests []capturedRequest
	srv      *httptest.Server
}

type capturedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]string
}

func newFakeFlyOut(t *testing.T) *fakeFlyOut {
	t.Helper()
	f := &fakeFlyOut{status: http.StatusOK, body: `{"ok":true}`}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]string
		_ = json.Unmarshal(data, &body)

		f.mu.Lock()
		f.requests = append(f.requests, capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		status, resp := f.status, f.body
		f.mu.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeFlyOut) respond(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.body = status, body
}

func (f *fakeFlyOut) calls() []capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedRequest(nil), f.requests...)
}

type harness struct {
	store  *store.Store
	client *flyout.Client
	cfg    flysync.Config
	engine *flysync.Engine
	worker *jobs.Worker
	flyout *fakeFlyOut
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := testhelpers.NewTestStore(t)
	f := newFakeFlyOut(t)

	client := flyout.New(flyout.Options{
		Sleep: func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
		Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	queue := jobs.NewQueue(s.Jobs)
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	cfg := flysync.Config{
		HTTPMaxRetries: 2,
		HTTPRetryDelay: time.Millisecond,
		HTTPTimeout:    5 * time.Second,
		RetryBaseDelay: time.Minute,
		Now:            func() time.Time { return now },
	}
	engine := flysync.New(s, client, queue, cfg)
	worker := jobs.NewWorker(s.Jobs, jobs.WorkerConfig{})
	engine.RegisterJobs(worker)

	_, err := s.Settings.Save(context.Background(), &domain.Settings{
		BaseURL:    f.srv.URL,
		APIKey:     "secret",
		EnableSync: true,
	})
	require.NoError(t, err)

	return &harness{store: s, client: client, cfg: cfg, engine: engine, worker: worker, flyout: f, now: now}
}

// engineWith builds a second engine over s and client with the harness
// configuration.
func (h *harness) engineWith(s *store.Store, client flysync.Doer) *flysync.Engine {
	return flysync.New(s, client, jobs.NewQueue(s.Jobs), h.cfg)
}

// runRetries runs every queued job as if its delay had passed.
func (h *harness) runRetries(t *testing.T) int {
	t.Helper()
	h.worker.SetClock(func() time.Time { return time.Now().Add(24 * time.Hour) })
	n, err := h.worker.RunDue(context.Background())
	require.NoError(t, err)
	return n
}

func (h *harness) logs(t *testing.T, f domain.LogFilter) []*domain.SyncLogEntry {
	t.Helper()
	page, err := h.store.SyncLogs.List(context.Background(), f)
	require.NoError(t, err)
	return page.Results
}

func newInquiryPayload(remoteID string) map[string]any {
	return map[string]any{
		"inquiry_id":          remoteID,
		"applicant_name":      "Asha Rao",
		"email":               "asha@example.com",
		"phone":               "+61 400 000 000",
		"service_type":        "Study",
		"destination_country": "Australia",
		"created_at":          "2026-10-01T08:30:00",
		"notes":               "Interested in CS programs",
	}
}

// remoteInquiry stores a FlyOut inquiry in status.
func (h *harness) remoteInquiry(t *testing.T, remoteID, status string) *domain.Record {
	t.Helper()
	rec, err := h.store.Records.Create(context.Background(), &domain.Record{
		EntityType: domain.EntityInquiry,
		RemoteID:   remoteID,
		Origin:     domain.OriginRemote,
		Status:     status,
		Fields: map[string]string{
			domain.FieldApplicantName: "Asha Rao",
			domain.FieldContactEmail:  "asha@example.com",
			domain.FieldServiceType:   "Study",
		},
	})
	require.NoError(t, err)
	return rec
}
