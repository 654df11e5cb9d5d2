package flyout_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnwards/flyoutsync/internal/domain"
	"github.com/johnwards/flyoutsync/internal/flyout"
)

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func newClient(rec *sleepRecorder) *flyout.Client {
	return flyout.New(flyout.Options{
		Sleep: rec.sleep,
		Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestDoSuccessFirstAttempt(t *testing.T) {
	var gotAuth, gotMethod string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	resp, err := newClient(rec).Do(context.Background(), flyout.Request{
		Method:     http.MethodPut,
		URL:        srv.URL + "/providers/inquiries/FL-1",
		Headers:    flyout.JSONHeaders("key"),
		Body:       []byte(`{"status":"NEW"}`),
		MaxRetries: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Attempts)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, "Bearer key", gotAuth)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.JSONEq(t, `{"status":"NEW"}`, string(gotBody))
	assert.Empty(t, rec.waits)
}

func TestDoBackoffDoublesAndStopsAfterLastAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	_, err := newClient(rec).Do(context.Background(), flyout.Request{
		Method:     http.MethodPut,
		URL:        srv.URL,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
	})
	require.Error(t, err)

	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.waits)

	var re *flyout.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusServiceUnavailable, re.StatusCode)
	assert.ErrorIs(t, err, domain.ErrRemoteRejection)
}

func TestDoRecoversOnRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	resp, err := newClient(rec).Do(context.Background(), flyout.Request{Method: http.MethodGet, URL: srv.URL, MaxRetries: 3, RetryDelay: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, []time.Duration{time.Second}, rec.waits)
}

func TestDoTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rec := &sleepRecorder{}
	_, err := newClient(rec).Do(context.Background(), flyout.Request{Method: http.MethodGet, URL: url, MaxRetries: 2, RetryDelay: time.Millisecond})
	require.Error(t, err)

	var te *flyout.TransportError
	assert.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, domain.ErrTransientNetwork)
	assert.Len(t, rec.waits, 1)
}

func TestDoZeroRetriesMeansOneAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	_, err := newClient(rec).Do(context.Background(), flyout.Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.Empty(t, rec.waits)
}

func TestDoPerAttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	_, err := newClient(rec).Do(context.Background(), flyout.Request{
		Method:     http.MethodGet,
		URL:        srv.URL,
		MaxRetries: 1,
		Timeout:    50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransientNetwork)
}

func TestDoCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := flyout.New(flyout.Options{
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	_, err := c.Do(ctx, flyout.Request{Method: http.MethodGet, URL: srv.URL, MaxRetries: 5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPing(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"name":"Agency"}`))
	}))
	defer srv.Close()

	c := newClient(&sleepRecorder{})

	_, err := c.Ping(context.Background(), srv.URL+"/", "good")
	require.NoError(t, err)
	assert.Equal(t, "/providers/me", path)

	_, err = c.Ping(context.Background(), srv.URL, "bad")
	var re *flyout.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusUnauthorized, re.StatusCode)

	_, err = c.Ping(context.Background(), "", "good")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, flyout.Backoff(2*time.Second, 1))
	assert.Equal(t, 4*time.Second, flyout.Backoff(2*time.Second, 2))
	assert.Equal(t, 8*time.Second, flyout.Backoff(2*time.Second, 3))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, flyout.IsRetryable(&flyout.RemoteError{StatusCode: 400}))
	assert.True(t, flyout.IsRetryable(&flyout.TransportError{Err: errors.New("reset")}))
	assert.False(t, flyout.IsRetryable(domain.ErrConfiguration))
	assert.False(t, flyout.IsRetryable(nil))
}
