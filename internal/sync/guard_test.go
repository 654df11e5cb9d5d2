package sync_test

import (
	"context"
	gosync "sync"
	"testing"

	"github.com/stretchr/testify/assert"

	flysync "github.com/johnwards/flyoutsync/internal/sync"
)

func TestGuardScopedToDerivedContext(t *testing.T) {
	parent := context.Background()
	guarded := flysync.WithGuard(parent)

	assert.True(t, flysync.InSync(guarded))
	assert.False(t, flysync.InSync(parent))

	child, cancel := context.WithCancel(guarded)
	defer cancel()
	assert.True(t, flysync.InSync(child))
}

func TestGuardIsolatedAcrossGoroutines(t *testing.T) {
	var wg gosync.WaitGroup
	results := make([]bool, 100)

	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			if i%2 == 0 {
				ctx = flysync.WithGuard(ctx)
			}
			results[i] = flysync.InSync(ctx)
		}()
	}
	wg.Wait()

	for i, got := range results {
		assert.Equal(t, i%2 == 0, got, "goroutine %d", i)
	}
}
