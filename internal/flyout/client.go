// Package flyout is the HTTP client for the FlyOut partner API.
package flyout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/johnwards/flyoutsync/internal/domain"
)

// Defaults applied when a Request leaves a field zero.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
)

// maxResponseBody bounds how much of a response body is kept.
const maxResponseBody = 1 << 20

// Request describes one logical call. MaxRetries is the total number of
// attempts; values below 1 mean a single attempt.
type Request struct {
	Method     string
	URL        string
	Headers    map[string]string
	Body       []byte
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Body       []byte
	Attempts   int
}

// RemoteError is a non-2xx reply from the partner API.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("FlyOut API returned %d: %s", e.StatusCode, e.Body)
}

// Unwrap makes a RemoteError match domain.ErrRemoteRejection.
func (e *RemoteError) Unwrap() error { return domain.ErrRemoteRejection }

// TransportError is a timeout or connection failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "FlyOut API request failed: " + e.Err.Error()
}

// Unwrap exposes both the cause and domain.ErrTransientNetwork.
func (e *TransportError) Unwrap() []error { return []error{domain.ErrTransientNetwork, e.Err} }

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	// RateLimit is the sustained requests per second; 0 disables limiting.
	RateLimit float64
	Burst     int
	// Sleep waits between attempts. It must return early with ctx.Err()
	// when ctx is cancelled. Defaults to a timer-based sleep.
	Sleep func(ctx context.Context, d time.Duration) error
	Log   *slog.Logger
}

// Client performs requests against FlyOut with per-attempt timeouts and
// exponential backoff between attempts.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	sleep      func(ctx context.Context, d time.Duration) error
	log        *slog.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	c := &Client{
		httpClient: opts.HTTPClient,
		sleep:      opts.Sleep,
		log:        opts.Log,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.sleep == nil {
		c.sleep = sleepCtx
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// Backoff returns the wait after failed attempt n (1-based).
func Backoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<(attempt-1))
}

// Do sends req, retrying on any failure up to req.MaxRetries attempts. The
// error of the last attempt is returned.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	attempts := req.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	delay := req.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.attempt(ctx, req)
		if err == nil {
			resp.Attempts = attempt
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == attempts {
			break
		}

		wait := Backoff(delay, attempt)
		c.log.Info("FlyOut request failed, retrying",
			"method", req.Method,
			"url", req.URL,
			"attempt", attempt,
			"max_attempts", attempts,
			"wait", wait.String(),
			"error", err,
		)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, &TransportError{Err: err}
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: err}
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// JSONHeaders returns the headers for an authenticated JSON call.
func JSONHeaders(apiKey string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + apiKey,
		"Content-Type":  "application/json",
		"Accept":        "application/json",
	}
}

// Ping checks that baseURL and apiKey are accepted by calling the provider
// profile endpoint once.
func (c *Client) Ping(ctx context.Context, baseURL, apiKey string) (*Response, error) {
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("base URL and API key are required: %w", domain.ErrConfiguration)
	}
	return c.Do(ctx, Request{
		Method:     http.MethodGet,
		URL:        strings.TrimRight(baseURL, "/") + "/providers/me",
		Headers:    JSONHeaders(apiKey),
		MaxRetries: 1,
	})
}

// IsRetryable reports whether err may succeed on a later attempt.
// Configuration and validation failures never do.
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, domain.ErrConfiguration) && !errors.Is(err, domain.ErrValidation)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
