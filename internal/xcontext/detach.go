// Package xcontext provides context helpers that outlive a cancelled parent,
// grounded on axonhub's internal/pkg/xcontext.DetachWithTimeout — used by
// persistence steps that must finish even after the client disconnects.
package xcontext

import (
	"context"
	"time"
)

type detached struct {
	parent context.Context
}

func (d detached) Deadline() (time.Time, bool) { return time.Time{}, false }
func (d detached) Done() <-chan struct{}       { return nil }
func (d detached) Err() error                  { return nil }
func (d detached) Value(key any) any           { return d.parent.Value(key) }

// Detach returns a context that keeps the values of ctx but ignores its
// cancellation and deadline.
func Detach(ctx context.Context) context.Context {
	return detached{parent: ctx}
}

// DetachWithTimeout is Detach plus a fresh timeout, so a cancelled request
// context can still complete a bounded best-effort write (e.g. persisting
// the user message after the client disconnected).
func DetachWithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(Detach(ctx), timeout)
}
