// Package entity defines the cacheable domain-object model: identity keys,
// optimistic-concurrency versions, the edit (change mode) lifecycle and the
// type registry used for polymorphic instantiation of server payloads.
//
// Concrete domain types embed Base (or VersionedBase) and implement Reload and
// Snapshot for their own fields. Everything that touches identity or version
// goes through Apply and Forget so the invariants hold in one place:
//   - an identifier only moves from "" to a value, and back to "" on Forget
//   - versions for the same key never decrease
//   - an entity in change mode is not overwritten by equal-version data
package entity

import "time"

// Payload is one object of parsed server JSON.
type Payload map[string]any

// Reserved payload fields.
const (
	TypeField      = "_type"
	IDField        = "id"
	VersionField   = "version"
	CreatedAtField = "createdAt"
	UpdatedAtField = "updatedAt"
)

// Entity is any cacheable domain object.
type Entity interface {
	// Type returns the declared type descriptor.
	Type() *Type
	// ID returns the persistence identifier, "" until the entity is persisted.
	ID() string
	// SetID changes the identifier. Use Apply and Forget instead of calling it directly.
	SetID(id string)
	// Reload applies the domain fields of p. Nested entity payloads are turned
	// into live entities through r.
	Reload(p Payload, r Resolver) error
	// Snapshot serializes the domain fields for create and update requests.
	Snapshot() Payload
	// LastReloaded is the time of the last successful reload, zero if never loaded.
	LastReloaded() time.Time
	// MarkReloaded records a successful reload.
	MarkReloaded(at time.Time)
}

// Versioned is implemented by entities carrying an optimistic-concurrency version.
// Version 0 means unset.
type Versioned interface {
	Version() int64
	SetVersion(v int64)
}

// Editable is implemented by entities that can be held in change mode.
type Editable interface {
	InChangeMode() bool
}

// Auditable is implemented by entities carrying server audit fields.
type Auditable interface {
	ReloadAudit(p Payload) error
	ClearAudit()
}

// Relater exposes the entities directly referenced by an entity, one level deep.
type Relater interface {
	Related() []Entity
}

// ToManyOwner exposes the to-many collections of an entity by property name.
type ToManyOwner interface {
	ToMany(property string) *ToMany
}

// Resolver turns a nested payload into a live entity, registering it with the
// cache on behalf of the entity being reloaded.
type Resolver interface {
	Resolve(p Payload) (Entity, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(p Payload) (Entity, error)

// Resolve calls f(p).
func (f ResolverFunc) Resolve(p Payload) (Entity, error) {
	return f(p)
}

// Change describes a field change reported to observers.
type Change struct {
	Entity Entity
	Field  string
	Old    any
	New    any
}
