package cron

import (
	"context"
	"time"

	"github.com/dailyyoga/objsync/logger"
	"github.com/dailyyoga/objsync/routine"
	"go.uber.org/zap"
)

// Middleware wraps a Task with additional behavior
type Middleware func(Task) Task

// applyMiddlewares applies mws so that the first one is the outermost:
// applyMiddlewares(t, a, b) is a(b(t))
func applyMiddlewares(t Task, mws ...Middleware) Task {
	for i := len(mws) - 1; i >= 0; i-- {
		t = mws[i](t)
	}
	return t
}

// Recovery turns a task panic into an error
func Recovery(log logger.Logger) Middleware {
	return func(next Task) Task {
		return NewTask(next.Name(), func(ctx context.Context) (err error) {
			defer func() {
				if rec := routine.Recover(log, next.Name(), recover()); rec != nil {
					err = routine.ErrPanic(rec)
				}
			}()
			return next.Run(ctx)
		})
	}
}

// Logging logs the outcome and duration of every run
func Logging(log logger.Logger) Middleware {
	return func(next Task) Task {
		return NewTask(next.Name(), func(ctx context.Context) error {
			start := time.Now()
			err := next.Run(ctx)
			if err != nil {
				log.Error("task failed",
					zap.String("task", next.Name()),
					zap.Duration("duration", time.Since(start)),
					zap.Error(err),
				)
				return err
			}
			log.Debug("task completed",
				zap.String("task", next.Name()),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		})
	}
}

// Timeout bounds every run of a task by d
func Timeout(d time.Duration) Middleware {
	return func(next Task) Task {
		return NewTask(next.Name(), func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Run(ctx)
		})
	}
}
