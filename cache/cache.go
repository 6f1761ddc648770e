// Package cache is a reference-counted store of live entities.
//
// Every entry owns a set of referers: widgets, other entities or sentinels
// that need the entity to stay resident. An entry lives exactly as long as
// its referer set is non-empty. When the last referer goes away the entry is
// evicted and its payload is in turn removed as a referer from every other
// entry, which may evict further entries. The cascade runs on an explicit
// worklist so arbitrarily deep or cyclic graphs neither recurse nor loop.
//
// All mutation happens under one lock and runs to completion, so no caller
// ever observes a half-applied cascade.
package cache

import (
	"time"

	"github.com/dailyyoga/objsync/entity"
)

// Referer is an opaque liveness claim on a cached entity. It must be comparable;
// pointers are the usual choice.
type Referer = any

// Cache is the reference-counted entity cache
type Cache interface {
	// Track registers e under its identity key and adds referer to its entry.
	// Adding the same referer twice is a no-op.
	Track(e entity.Entity, referer Referer) error

	// StopTracking removes referer from e's entry, evicting it (and cascading)
	// when no referer remains. Entities that lost their identity are found by
	// payload instead of key.
	StopTracking(e entity.Entity, referer Referer)

	// StopTrackingCompletely evicts e regardless of its remaining referers.
	StopTrackingCompletely(e entity.Entity)

	// StopTrackingAsReferer removes referer from every entry.
	StopTrackingAsReferer(referer Referer)

	// GetByTypeAndID finds an entity by type name and id, also searching the
	// known subtypes of typeName in registration order; the first hit wins.
	GetByTypeAndID(typeName, id string) entity.Entity

	// GetByKey finds an entity by its exact key.
	GetByKey(key entity.Key) entity.Entity

	// Get returns the cached entity sharing e's identity, nil if none.
	Get(e entity.Entity) entity.Entity

	// Holds reports whether the instance e itself is cached, as the resident
	// payload or as a second instance tracked under the same key.
	Holds(e entity.Entity) bool

	// Settle aligns the claims holder makes with its residency, atomically.
	// A held holder tracks every keyed entity of refs with itself as referer;
	// any other holder is removed as referer everywhere, cascading. It
	// reports whether holder is held.
	Settle(holder entity.Entity, refs []entity.Entity) bool

	// RefererCount returns the number of referers of e's entry, 0 if not cached.
	RefererCount(e entity.Entity) int

	// Subtypes returns the subtypes of typeName seen so far, in registration order.
	Subtypes(typeName string) []string

	// ForEach calls fn for every live payload, in no particular order.
	// fn runs outside the cache lock and may call back into the cache.
	ForEach(fn func(e entity.Entity))

	// Len returns the number of entries.
	Len() int

	// Report returns diagnostics for leak hunting.
	Report() Report
}

// EvictHook is called, under the cache lock, for every evicted payload.
// It must not call back into the cache.
type EvictHook func(e entity.Entity)

// ClearToMany is the default EvictHook: evicted to-many collections are
// emptied and marked never loaded, other payloads are left untouched.
func ClearToMany(e entity.Entity) {
	if tm, ok := e.(*entity.ToMany); ok {
		tm.Clear()
	}
}

// Sentinel is a named referer for owners that are not entities, e.g. a view
// or a long-lived service pinning some entities.
type Sentinel struct {
	name string
}

// NewSentinel returns a new, distinct referer.
func NewSentinel(name string) *Sentinel {
	return &Sentinel{name: name}
}

// String implements fmt.Stringer.
func (s *Sentinel) String() string {
	return "sentinel:" + s.name
}

// Report aggregates the state of a cache
type Report struct {
	Name          string
	At            time.Time
	Count         int
	TotalReferers int
	// Oldest and Newest are entry creation times, zero when the cache is empty
	Oldest  time.Time
	Newest  time.Time
	Entries []EntryReport
}

// EntryReport describes one entry
type EntryReport struct {
	Key      entity.Key
	Type     string
	Referers int
	Created  time.Time
}
