package sync

import "context"

type guardKey struct{}

// WithGuard returns a context marking the work done under it as applying a
// change that came from FlyOut. Pushes are suppressed under a guarded
// context. The parent context is not modified.
func WithGuard(ctx context.Context) context.Context {
	return context.WithValue(ctx, guardKey{}, true)
}

// InSync reports whether ctx carries the in-sync guard.
func InSync(ctx context.Context) bool {
	v, _ := ctx.Value(guardKey{}).(bool)
	return v
}
