package crud

import (
	"context"
	"time"

	"github.com/dailyyoga/objsync/cache"
	"github.com/dailyyoga/objsync/entity"
)

// registryReviver revives payloads through the type registry
type registryReviver struct {
	cache    cache.Cache
	registry *entity.Registry
	now      func() time.Time
}

// NewReviver creates a Reviver instantiating unknown entities from registry
func NewReviver(c cache.Cache, registry *entity.Registry) Reviver {
	return &registryReviver{cache: c, registry: registry, now: time.Now}
}

func (rv *registryReviver) Revive(ctx context.Context, p entity.Payload, referer cache.Referer) (entity.Entity, error) {
	if p == nil {
		return nil, entity.ErrNilPayload
	}
	typeName := p.TypeName()
	var e entity.Entity
	if id := p.ID(); id != "" {
		e = rv.cache.GetByTypeAndID(typeName, id)
	}
	if e == nil {
		var err error
		if e, err = rv.registry.New(typeName); err != nil {
			return nil, err
		}
	}

	if _, err := rv.ReviveInto(ctx, e, p); err != nil {
		if !rv.cache.Holds(e) {
			rv.cache.StopTrackingAsReferer(e)
		}
		return nil, err
	}
	if referer != nil {
		if err := rv.cache.Track(e, referer); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (rv *registryReviver) ReviveInto(ctx context.Context, e entity.Entity, p entity.Payload) (bool, error) {
	before := related(e)
	applied, err := entity.ApplyAt(e, p, rv.resolver(ctx, e), rv.now())
	if err != nil {
		return false, err
	}
	rv.release(e, before)
	return applied, nil
}

func (rv *registryReviver) Accept(ctx context.Context, e entity.Entity, p entity.Payload) error {
	before := related(e)
	if err := entity.Accept(e, p, rv.resolver(ctx, e)); err != nil {
		return err
	}
	rv.release(e, before)
	return nil
}

// resolver revives nested payloads tracked with parent as referer. Nested
// objects without identifier are plain values and stay untracked.
func (rv *registryReviver) resolver(ctx context.Context, parent entity.Entity) entity.Resolver {
	return entity.ResolverFunc(func(p entity.Payload) (entity.Entity, error) {
		if p.ID() == "" {
			return rv.Revive(ctx, p, nil)
		}
		return rv.Revive(ctx, p, parent)
	})
}

// release drops parent's claim on the entities it no longer references
func (rv *registryReviver) release(parent entity.Entity, before []entity.Entity) {
	if len(before) == 0 {
		return
	}
	after := make(map[entity.Entity]struct{})
	for _, r := range related(parent) {
		after[r] = struct{}{}
	}
	for _, r := range before {
		if _, ok := after[r]; !ok {
			rv.cache.StopTracking(r, parent)
		}
	}
}

func related(e entity.Entity) []entity.Entity {
	if r, ok := e.(entity.Relater); ok {
		return r.Related()
	}
	return nil
}
