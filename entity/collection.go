package entity

import (
	"slices"
	"sync"
	"time"
)

// Collection holds the items of a list fetch together with the server's
// total count, which travels out of band and is not part of the items.
type Collection struct {
	mu         sync.RWMutex
	items      []Entity
	total      int
	hasTotal   bool
	reloadedAt time.Time
}

// Items returns a copy of the current items.
func (c *Collection) Items() []Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Len returns the number of loaded items.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Total returns the server-reported total, if one was reported.
func (c *Collection) Total() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total, c.hasTotal
}

// Loaded reports whether the collection was filled at least once since it
// was created or last cleared.
func (c *Collection) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.reloadedAt.IsZero()
}

// Fill replaces the items and total. A negative total means unknown.
func (c *Collection) Fill(items []Entity, total int, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = slices.Clone(items)
	c.total, c.hasTotal = total, total >= 0
	c.reloadedAt = at
}

// Clear empties the collection and marks it never loaded.
func (c *Collection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.total, c.hasTotal = 0, false
	c.reloadedAt = time.Time{}
}

// LastReloaded returns the time of the last fill.
func (c *Collection) LastReloaded() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reloadedAt
}

// MarkReloaded sets the fill time.
func (c *Collection) MarkReloaded(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reloadedAt = at
}

// ToManyType is the type of every to-many collection.
var ToManyType = &Type{Name: "toMany"}

// ToMany is the "many" side of a one-to-many relation. It is cached like an
// entity, keyed by its owner and property, and holds its items as referer.
type ToMany struct {
	Collection
	owner    Entity
	property string
}

// NewToMany creates the collection of owner's property.
func NewToMany(owner Entity, property string) *ToMany {
	return &ToMany{owner: owner, property: property}
}

// Owner returns the owning entity.
func (t *ToMany) Owner() Entity {
	return t.owner
}

// Property returns the relation name.
func (t *ToMany) Property() string {
	return t.property
}

// Type implements Entity.
func (t *ToMany) Type() *Type {
	return ToManyType
}

// ID implements Entity; it is "" while the owner is not persisted.
func (t *ToMany) ID() string {
	k := KeyForObject(t.owner)
	if k == "" {
		return ""
	}
	return string(k) + "#" + t.property
}

// SetID implements Entity. The identity of a to-many follows its owner.
func (t *ToMany) SetID(string) {}

// Reload implements Entity.
func (t *ToMany) Reload(Payload, Resolver) error {
	return ErrNotReloadable
}

// Snapshot implements Entity.
func (t *ToMany) Snapshot() Payload {
	return nil
}
