// Package throttle bounds the number of requests in flight.
//
// Callers over the budget wait in a FIFO queue. Every completion, whether
// success, error or panic, hands its slot to the oldest caller still waiting,
// so the in-flight count never exceeds the budget and queued callers start in
// the order they arrived.
package throttle

import (
	"context"
)

// Limiter is a FIFO concurrency limiter
type Limiter interface {
	// Do runs fn once a slot is available. A caller whose ctx ends while it
	// is still queued abandons its place and gets ctx.Err(); fn never runs.
	Do(ctx context.Context, fn func(ctx context.Context) error) error

	// InFlight returns the number of slots in use
	InFlight() int

	// Queued returns the number of callers waiting for a slot
	Queued() int

	// Close fails every queued caller with ErrClosed and rejects new ones.
	// Calls already running are not interrupted.
	Close() error
}

// Run is Do for functions returning a value
func Run[T any](ctx context.Context, l Limiter, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := l.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}
