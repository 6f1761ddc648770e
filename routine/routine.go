// Package routine runs fire-and-forget work with panic recovery.
//
// Background refreshes spawned by the sync protocol must never take the
// process down nor leak into the caller's result, so they are started through
// a Runner, which recovers panics, logs them and keeps a count of the work
// still running.
package routine

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/dailyyoga/objsync/logger"
	"go.uber.org/zap"
)

// Runner provides safe goroutine execution with panic recovery
type Runner interface {
	// Go executes a function in a new goroutine with panic recovery
	Go(fn func())

	// GoNamed executes a named function in a new goroutine with panic recovery
	// The name is used for logging purposes
	GoNamed(name string, fn func())

	// GoNamedWithContext executes a named function with context in a new goroutine
	GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context))

	// Running returns the number of goroutines started by this runner that have not returned
	Running() int

	// Wait waits for all goroutines started by this runner to complete
	Wait()
}

type defaultRunner struct {
	log     logger.Logger
	wg      sync.WaitGroup
	running atomic.Int64
}

// New creates a new Runner with the given logger
func New(log logger.Logger) Runner {
	if log == nil {
		log = logger.NewNop()
	}
	return &defaultRunner{log: log}
}

func (r *defaultRunner) Go(fn func()) {
	r.GoNamed("", fn)
}

func (r *defaultRunner) GoNamed(name string, fn func()) {
	r.GoNamedWithContext(context.Background(), name, func(context.Context) { fn() })
}

func (r *defaultRunner) GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	r.running.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Add(-1)
		defer recoverWithLog(r.log, name)
		fn(ctx)
	}()
}

func (r *defaultRunner) Running() int {
	return int(r.running.Load())
}

func (r *defaultRunner) Wait() {
	r.wg.Wait()
}

// GoNamed executes a named function in a new goroutine with panic recovery,
// without tracking it in any Runner
func GoNamed(log logger.Logger, name string, fn func()) {
	go func() {
		defer recoverWithLog(log, name)
		fn()
	}()
}

// Recover logs a recovered panic value; it must be called directly by a deferred function.
// It returns the recovered value, nil when there was no panic.
func Recover(log logger.Logger, name string, rec any) any {
	if rec == nil {
		return nil
	}
	fields := []zap.Field{
		zap.Any("panic", rec),
		zap.String("stack", string(debug.Stack())),
	}
	if name != "" {
		fields = append([]zap.Field{zap.String("routine", name)}, fields...)
	}
	log.Error("goroutine panicked", fields...)
	return rec
}

func recoverWithLog(log logger.Logger, name string) {
	Recover(log, name, recover())
}
