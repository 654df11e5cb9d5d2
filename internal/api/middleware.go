package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/johnwards/flyoutsync/internal/store"
)

type contextKey int

const correlationIDKey contextKey = iota

// WebhookPrefix is the path prefix served to FlyOut. Requests under it are
// authenticated by WebhookAuth instead of Auth.
const WebhookPrefix = "/api/flyout/"

// CorrelationID returns the correlation ID from the request context.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// Recovery returns middleware that recovers from panics and returns a 500
// error body.
func Recovery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("panic recovered",
						"error", rec,
						"method", r.Method,
						"path", r.URL.Path,
					)
					WriteError(w, http.StatusInternalServerError, &Error{
						Status:        "error",
						Message:       "Internal Server Error",
						CorrelationID: CorrelationID(r.Context()),
						Category:      CategoryInternalError,
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID returns middleware that generates a UUID v4 correlation ID, stores
// it in the request context, and adds it to the response headers.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			ctx := context.WithValue(r.Context(), correlationIDKey, id)
			w.Header().Set("X-Correlation-Id", id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Auth returns middleware that validates the admin Bearer token if authToken
// is non-empty. Webhook paths are skipped. If authToken is empty, all requests
// pass through.
func Auth(authToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authToken == "" || strings.HasPrefix(r.URL.Path, WebhookPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || !tokenEqual(token, authToken) {
				WriteError(w, http.StatusUnauthorized, &Error{
					Status:        "error",
					Message:       "Authentication credentials not found",
					CorrelationID: CorrelationID(r.Context()),
					Category:      CategoryAuthentication,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WebhookAuth returns middleware that authenticates FlyOut callbacks against
// the stored API key. The token may arrive as a Bearer header, an
// X-FlyOut-Token header, or a token query parameter. Requests are refused
// with 403 while sync is disabled.
func WebhookAuth(settings store.SettingsStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			corrID := CorrelationID(r.Context())
			st, err := settings.Get(r.Context())
			if err != nil {
				WriteDomainError(w, r, err)
				return
			}
			if !st.EnableSync {
				WriteError(w, http.StatusForbidden, &Error{
					Status:        "error",
					Message:       "FlyOut synchronization is disabled",
					CorrelationID: corrID,
					Category:      CategoryForbidden,
				})
				return
			}

			token := webhookToken(r)
			if token == "" || st.APIKey == "" || !tokenEqual(token, st.APIKey) {
				slog.Warn("webhook authentication failed",
					"path", r.URL.Path,
					"remote", r.RemoteAddr,
					"token_present", token != "",
				)
				WriteError(w, http.StatusUnauthorized, &Error{
					Status:        "error",
					Message:       "Invalid or missing FlyOut token",
					CorrelationID: corrID,
					Category:      CategoryAuthentication,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func webhookToken(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token)
	}
	if token := r.Header.Get("X-FlyOut-Token"); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}

func tokenEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// JSONContentType returns middleware that sets the Content-Type header to
// application/json on all responses.
func JSONContentType() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			next.ServeHTTP(w, r)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	code int
}

// WriteHeader captures the status code and delegates to the wrapped writer.
func (sw *statusWriter) WriteHeader(code int) {
	sw.code = code
	sw.ResponseWriter.WriteHeader(code)
}

// Logging returns middleware that logs each request with slog.
func Logging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sw, r)
			slog.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.code,
				"duration", time.Since(start).String(),
				"correlation_id", CorrelationID(r.Context()),
			)
		})
	}
}

// Chain applies middleware in order so that the first middleware is the
// outermost handler.
func Chain(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
