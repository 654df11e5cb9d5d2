package seed

import (
	"context"
	"fmt"

	"github.com/johnwards/flyoutsync/internal/domain"
	"github.com/johnwards/flyoutsync/internal/store"
)

// Settings stores st as the FlyOut settings unless settings were already
// saved. It reports whether anything was written. Settings edited through
// the admin API always win over the environment.
func Settings(ctx context.Context, s store.SettingsStore, st domain.Settings) (bool, error) {
	cur, err := s.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("load settings: %w", err)
	}
	if cur.UpdatedAt != "" {
		return false, nil
	}
	if st.BaseURL == "" && st.APIKey == "" && !st.EnableSync {
		return false, nil
	}
	if _, err := s.Save(ctx, &st); err != nil {
		return false, fmt.Errorf("seed settings: %w", err)
	}
	return true, nil
}

// Seed inserts the demo data. It is idempotent: nothing is written when
// inquiries already exist.
func Seed(ctx context.Context, records store.RecordStore) error {
	if err := Inquiries(ctx, records); err != nil {
		return fmt.Errorf("seed inquiries: %w", err)
	}
	return nil
}
