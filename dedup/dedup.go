// Package dedup coalesces concurrent calls for the same key.
//
// The sync layer uses it twice: retrieves of the same (type, id) share one
// server round trip, and fetches of the same to-many relation are serialized
// through a per-relation arbiter so that a collection is never filled by two
// responses at once.
package dedup

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Group deduplicates calls by key
type Group struct {
	flight singleflight.Group

	mu      sync.Mutex
	waiting map[string]int
}

// Do runs fn once for all concurrent callers of key. shared reports whether
// the result was handed to more than one caller.
func (g *Group) Do(key string, fn func() (any, error)) (v any, err error, shared bool) {
	g.attach(key)
	defer g.detach(key)
	return g.flight.Do(key, fn)
}

// Result is the outcome of a call started with DoChan
type Result = singleflight.Result

// DoChan is Do without blocking the caller. The channel receives exactly one
// result; a caller that stops waiting does not cancel the shared call.
func (g *Group) DoChan(key string, fn func() (any, error)) <-chan Result {
	g.attach(key)
	in := g.flight.DoChan(key, fn)
	out := make(chan Result, 1)
	go func() {
		r := <-in
		g.detach(key)
		out <- r
	}()
	return out
}

// Forget makes the next Do for key start a new call even if one is in flight.
func (g *Group) Forget(key string) {
	g.flight.Forget(key)
}

// Waiting returns the number of callers currently attached to key.
func (g *Group) Waiting(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiting[key]
}

func (g *Group) attach(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.waiting == nil {
		g.waiting = make(map[string]int)
	}
	g.waiting[key]++
}

func (g *Group) detach(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.waiting[key]--; g.waiting[key] <= 0 {
		delete(g.waiting, key)
	}
}

// Do is Group.Do with a typed result.
func Do[T any](g *Group, key string, fn func() (T, error)) (T, error, bool) {
	v, err, shared := g.Do(key, func() (any, error) {
		return fn()
	})
	out, _ := v.(T)
	return out, err, shared
}
