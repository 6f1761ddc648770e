package cron

import (
	"context"
	"sync"
)

type contextKey struct{}

// Shared carries values between the tasks of one job run
type Shared struct {
	data sync.Map
}

// SharedFrom returns the store of the current run, nil outside a job
func SharedFrom(ctx context.Context) *Shared {
	s, _ := ctx.Value(contextKey{}).(*Shared)
	return s
}

func withShared(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, &Shared{})
}

// Set stores value under key
func (s *Shared) Set(key string, value any) {
	s.data.Store(key, value)
}

// Get returns the value stored under key
func (s *Shared) Get(key string) (any, bool) {
	return s.data.Load(key)
}

// Value returns the value stored under key in the run of ctx if it has type T
func Value[T any](ctx context.Context, key string) (T, bool) {
	var zero T
	s := SharedFrom(ctx)
	if s == nil {
		return zero, false
	}
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
