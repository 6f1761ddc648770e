package entity

import (
	"sync"
)

// Type describes an entity type. Parent links form the type hierarchy used by
// the cache to answer supertype lookups.
type Type struct {
	Name   string
	Parent *Type
	// New constructs an empty instance; nil for abstract types.
	New func() Entity
}

// Ancestors returns the parent chain, nearest first.
func (t *Type) Ancestors() []*Type {
	var out []*Type
	for p := t.Parent; p != nil; p = p.Parent {
		out = append(out, p)
	}
	return out
}

// IsA reports whether t is other or one of its subtypes.
func (t *Type) IsA(other *Type) bool {
	for c := t; c != nil; c = c.Parent {
		if c == other {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}

// Registry maps server type tags to descriptors. It is populated at startup
// and read when payloads are revived.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewRegistry creates a registry holding the given types and their ancestors.
// It panics on malformed or conflicting descriptors, which are programming errors.
func NewRegistry(types ...*Type) *Registry {
	r := &Registry{types: make(map[string]*Type)}
	for _, t := range types {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds t and its ancestors.
func (r *Registry) Register(t *Type) error {
	if t == nil {
		return ErrInvalidType("nil type")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := t; c != nil; c = c.Parent {
		if c.Name == "" {
			return ErrInvalidType("empty name")
		}
		if existing, ok := r.types[c.Name]; ok {
			if existing != c {
				return ErrDuplicateType(c.Name)
			}
			continue
		}
		r.types[c.Name] = c
	}
	return nil
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// New instantiates the type registered under name.
func (r *Registry) New(name string) (Entity, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, ErrUnknownType(name)
	}
	if t.New == nil {
		return nil, ErrAbstractType(name)
	}
	return t.New(), nil
}
