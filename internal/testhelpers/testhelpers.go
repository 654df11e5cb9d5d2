package testhelpers

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/johnwards/flyoutsync/internal/database"
	"github.com/johnwards/flyoutsync/internal/domain"
	"github.com/johnwards/flyoutsync/internal/flyout"
	"github.com/johnwards/flyoutsync/internal/jobs"
	"github.com/johnwards/flyoutsync/internal/store"
	flysync "github.com/johnwards/flyoutsync/internal/sync"
)

// NewTestDB returns an in-memory SQLite database configured the same way as
// production. The database is automatically closed when the test completes.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// NewTestStore returns a Store over a migrated in-memory database.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()

	db := NewTestDB(t)
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return store.New(db)
}

// NewTestEngine returns a sync engine over s whose HTTP client makes a
// single attempt per call and never sleeps.
func NewTestEngine(t *testing.T, s *store.Store) *flysync.Engine {
	t.Helper()

	client := flyout.New(flyout.Options{
		Sleep: func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
		Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return flysync.New(s, client, jobs.NewQueue(s.Jobs), flysync.Config{
		HTTPMaxRetries: 1,
		HTTPTimeout:    5 * time.Second,
	})
}

// EnableSync stores enabled FlyOut settings pointing at baseURL.
func EnableSync(t *testing.T, s *store.Store, baseURL, apiKey string) {
	t.Helper()

	_, err := s.Settings.Save(context.Background(), &domain.Settings{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		EnableSync: true,
	})
	if err != nil {
		t.Fatalf("save settings: %v", err)
	}
}
