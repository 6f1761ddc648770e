package entity

import (
	"sync"
	"time"
)

// Base carries the bookkeeping every entity needs. Embed it and call Init
// from the type's constructor.
type Base struct {
	mu         sync.RWMutex
	self       Entity
	typ        *Type
	id         string
	reloadedAt time.Time
	changeMode bool

	obsMu     sync.Mutex
	observers map[int]func(Change)
	nextObs   int
}

// Init binds the embedding entity and its type.
func (b *Base) Init(self Entity, t *Type) {
	b.self = self
	b.typ = t
}

// Type implements Entity.
func (b *Base) Type() *Type {
	return b.typ
}

// ID implements Entity.
func (b *Base) ID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

// SetID implements Entity.
func (b *Base) SetID(id string) {
	b.mu.Lock()
	old := b.id
	b.id = id
	b.mu.Unlock()
	if old != id {
		b.Changed("id", old, id)
	}
}

// LastReloaded implements Entity.
func (b *Base) LastReloaded() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.reloadedAt
}

// MarkReloaded implements Entity.
func (b *Base) MarkReloaded(at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reloadedAt = at
}

// InChangeMode implements Editable.
func (b *Base) InChangeMode() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.changeMode
}

// SetChangeMode enters or leaves change mode.
func (b *Base) SetChangeMode(on bool) {
	b.mu.Lock()
	old := b.changeMode
	b.changeMode = on
	b.mu.Unlock()
	if old != on {
		b.Changed("changeMode", old, on)
	}
}

// Observe registers fn for field changes. The returned function unregisters it.
func (b *Base) Observe(fn func(Change)) func() {
	b.obsMu.Lock()
	defer b.obsMu.Unlock()
	if b.observers == nil {
		b.observers = make(map[int]func(Change))
	}
	id := b.nextObs
	b.nextObs++
	b.observers[id] = fn
	return func() {
		b.obsMu.Lock()
		defer b.obsMu.Unlock()
		delete(b.observers, id)
	}
}

// Changed notifies observers. Concrete types call it from their setters.
func (b *Base) Changed(field string, old, new any) {
	b.obsMu.Lock()
	fns := make([]func(Change), 0, len(b.observers))
	for _, fn := range b.observers {
		fns = append(fns, fn)
	}
	b.obsMu.Unlock()

	c := Change{Entity: b.self, Field: field, Old: old, New: new}
	for _, fn := range fns {
		fn(c)
	}
}

// VersionedBase is Base plus an optimistic-concurrency version and server
// audit timestamps.
type VersionedBase struct {
	Base
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// Version implements Versioned.
func (b *VersionedBase) Version() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// SetVersion implements Versioned.
func (b *VersionedBase) SetVersion(v int64) {
	b.mu.Lock()
	old := b.version
	b.version = v
	b.mu.Unlock()
	if old != v {
		b.Changed("version", old, v)
	}
}

// CreatedAt returns the server creation time.
func (b *VersionedBase) CreatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.createdAt
}

// UpdatedAt returns the server modification time.
func (b *VersionedBase) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updatedAt
}

// ReloadAudit implements Auditable.
func (b *VersionedBase) ReloadAudit(p Payload) error {
	created, updated := p.Time(CreatedAtField), p.Time(UpdatedAtField)
	b.mu.Lock()
	b.createdAt, b.updatedAt = created, updated
	b.mu.Unlock()
	return nil
}

// ClearAudit implements Auditable.
func (b *VersionedBase) ClearAudit() {
	b.mu.Lock()
	oldCreated, oldUpdated := b.createdAt, b.updatedAt
	b.createdAt, b.updatedAt = time.Time{}, time.Time{}
	b.mu.Unlock()
	if !oldCreated.IsZero() {
		b.Changed(CreatedAtField, oldCreated, time.Time{})
	}
	if !oldUpdated.IsZero() {
		b.Changed(UpdatedAtField, oldUpdated, time.Time{})
	}
}
