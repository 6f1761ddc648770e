package crud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dailyyoga/objsync/cache"
	"github.com/dailyyoga/objsync/dedup"
	"github.com/dailyyoga/objsync/entity"
	"github.com/dailyyoga/objsync/logger"
	"github.com/dailyyoga/objsync/routine"
	"github.com/dailyyoga/objsync/signal"
	"github.com/dailyyoga/objsync/throttle"
	"go.uber.org/zap"
)

type defaultDao struct {
	logger            logger.Logger
	name              string
	staleAfter        time.Duration
	backgroundTimeout time.Duration
	now               func() time.Time

	cache          cache.Cache
	transport      Transport
	urls           URLBuilder
	reviver        Reviver
	bus            signal.Bus
	limiter        throttle.Limiter
	runner         routine.Runner
	onUnauthorized UnauthorizedFunc
	origin         string

	// inflight coalesces retrieves per entity key
	inflight dedup.Group
	// arbiter serializes fetches per to-many relation
	arbiter dedup.Group
}

// New creates a Dao
func New(log logger.Logger, cfg *Config, deps *Deps) (Dao, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps == nil {
		return nil, ErrMissingDependency("deps")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	deps, err := deps.withDefaults(log, cfg)
	if err != nil {
		return nil, err
	}

	log.Info("dao initialized",
		zap.String("dao", cfg.Name),
		zap.Duration("stale_after", cfg.StaleAfter),
		zap.Duration("background_timeout", cfg.BackgroundTimeout),
	)
	return &defaultDao{
		logger:            log,
		name:              cfg.Name,
		staleAfter:        cfg.StaleAfter,
		backgroundTimeout: cfg.BackgroundTimeout,
		now:               time.Now,
		cache:             deps.Cache,
		transport:         deps.Transport,
		urls:              deps.URLs,
		reviver:           deps.Reviver,
		bus:               deps.Bus,
		limiter:           deps.Limiter,
		runner:            deps.Runner,
		onUnauthorized:    deps.OnUnauthorized,
		origin:            deps.Origin,
	}, nil
}

// fetchResult is shared by all callers of one coalesced retrieve
type fetchResult struct {
	e           entity.Entity
	key         entity.Key
	disappeared bool
}

func (d *defaultDao) Retrieve(ctx context.Context, typeName, id string, referer cache.Referer, force bool) (e entity.Entity, err error) {
	b := signal.NewBuilder(signal.ActionRetrieve, d.name)
	defer func() { d.finish(b, err) }()

	if typeName == "" || id == "" {
		return nil, ErrPreconditionFailed("retrieve", "type and id are required")
	}
	key := entity.KeyForID(typeName, id)
	b.Key(key).URL(d.urls.EntityURL(signal.ActionRetrieve, typeName, id))

	if cached := d.cache.GetByTypeAndID(typeName, id); cached != nil && !force && d.fresh(cached) {
		b.Subject(cached)
		if err := d.track(cached, referer); err != nil {
			return nil, err
		}
		d.refreshInBackground(cached)
		return cached, nil
	}

	ch := d.inflight.DoChan(string(key), d.detached(ctx, "fetch "+string(key), func(ctx context.Context) (any, error) {
		return d.fetch(ctx, typeName, id)
	}))
	var r dedup.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return nil, &CancelledError{Err: ctx.Err()}
	}
	if r.Err != nil {
		return nil, r.Err
	}

	res := r.Val.(fetchResult)
	b.Subject(res.e).Key(res.key)
	if res.disappeared {
		b.Disappeared(res.e)
		return res.e, nil
	}
	if err := d.track(res.e, referer); err != nil {
		return nil, err
	}
	return res.e, nil
}

// fetch loads typeName@id from the server. A cached entity the server no
// longer knows is evicted and forgotten.
func (d *defaultDao) fetch(ctx context.Context, typeName, id string) (fetchResult, error) {
	req := &Request{
		Method: http.MethodGet,
		URL:    d.urls.EntityURL(signal.ActionRetrieve, typeName, id),
		Type:   typeName,
		ID:     id,
	}
	resp, err := d.send(ctx, req)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			if known := d.cache.GetByTypeAndID(typeName, id); known != nil {
				key := entity.KeyForObject(known)
				d.disappear(known)
				return fetchResult{e: known, key: key, disappeared: true}, nil
			}
		}
		return fetchResult{}, err
	}

	p, ok := entity.AsPayload(resp.Body)
	if !ok {
		return fetchResult{}, ErrMalformedResponse(req.URL, "expected an object")
	}
	if p.TypeName() == "" {
		p[entity.TypeField] = typeName
	}
	e, err := d.reviver.Revive(ctx, p, nil)
	if err != nil {
		return fetchResult{}, err
	}
	if e.ID() == "" {
		return fetchResult{}, ErrMalformedResponse(req.URL, "missing identifier")
	}
	return fetchResult{e: e, key: entity.KeyForObject(e)}, nil
}

func (d *defaultDao) Create(ctx context.Context, e entity.Entity, referer cache.Referer) (err error) {
	b := signal.NewBuilder(signal.ActionCreate, d.name).Subject(e)
	defer func() { d.finish(b, err) }()

	if e == nil {
		return ErrPreconditionFailed("create", "nil entity")
	}
	if e.ID() != "" {
		return ErrPreconditionFailed("create", fmt.Sprintf("%s already has an identifier", entity.KeyForObject(e)))
	}

	typeName := e.Type().Name
	req := &Request{
		Method: http.MethodPost,
		URL:    d.urls.EntityURL(signal.ActionCreate, typeName, ""),
		Type:   typeName,
		Body:   requestBody(e),
	}
	b.URL(req.URL)

	resp, err := d.send(ctx, req)
	if err != nil {
		return err
	}
	p, ok := entity.AsPayload(resp.Body)
	if !ok {
		return ErrMalformedResponse(req.URL, "expected an object")
	}
	if err := d.reviver.Accept(ctx, e, p); err != nil {
		if e.ID() != "" {
			entity.Forget(e)
		}
		d.settle(e)
		return err
	}
	if e.ID() == "" {
		d.settle(e)
		return ErrMalformedResponse(req.URL, "missing identifier")
	}
	if err := d.track(e, referer); err != nil {
		return err
	}

	b.Created(e)
	d.logger.Debug("entity created", zap.String("dao", d.name), zap.String("key", string(entity.KeyForObject(e))))
	return nil
}

func (d *defaultDao) Update(ctx context.Context, e entity.Entity) (err error) {
	b := signal.NewBuilder(signal.ActionUpdate, d.name).Subject(e)
	defer func() { d.finish(b, err) }()

	if e == nil || e.ID() == "" {
		return ErrPreconditionFailed("update", "entity must have an identifier")
	}

	typeName, id := e.Type().Name, e.ID()
	req := &Request{
		Method: http.MethodPut,
		URL:    d.urls.EntityURL(signal.ActionUpdate, typeName, id),
		Type:   typeName,
		ID:     id,
		Body:   requestBody(e),
	}
	b.URL(req.URL)

	resp, err := d.send(ctx, req)
	if err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) {
			d.applyConflict(ctx, ce)
		}
		return err
	}
	// an answer without body acknowledges the write as sent
	if p, ok := entity.AsPayload(resp.Body); ok {
		if err := d.reviver.Accept(ctx, e, p); err != nil {
			return err
		}
		d.settle(e)
	}
	return nil
}

// applyConflict reloads the cached copy of the entity the server reported as
// conflicting, which need not be the entity that was sent.
func (d *defaultDao) applyConflict(ctx context.Context, ce *ConflictError) {
	if ce.NewVersion == nil {
		return
	}
	cached := d.cache.GetByTypeAndID(ce.Type, ce.ID)
	if cached == nil {
		return
	}
	key := entity.KeyForObject(cached)
	applied, err := d.reviver.ReviveInto(ctx, cached, ce.NewVersion)
	if err != nil {
		d.logger.Error("failed to apply conflicting version", zap.String("key", string(key)), zap.Error(err))
		return
	}
	d.settle(cached)
	d.logger.Info("conflicting version received",
		zap.String("dao", d.name),
		zap.String("key", string(key)),
		zap.Bool("applied", applied),
	)
}

func (d *defaultDao) Remove(ctx context.Context, e entity.Entity) (err error) {
	b := signal.NewBuilder(signal.ActionDelete, d.name).Subject(e)
	defer func() { d.finish(b, err) }()

	if e == nil || e.ID() == "" {
		return ErrPreconditionFailed("remove", "entity must have an identifier")
	}

	typeName, id := e.Type().Name, e.ID()
	req := &Request{
		Method: http.MethodDelete,
		URL:    d.urls.EntityURL(signal.ActionDelete, typeName, id),
		Type:   typeName,
		ID:     id,
	}
	b.URL(req.URL)

	if _, err := d.send(ctx, req); err != nil {
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			return err
		}
		d.logger.Debug("entity already deleted", zap.String("dao", d.name), zap.String("url", req.URL))
	}

	refs := related(e)
	d.disappear(e)
	b.Disappeared(e)

	// the delete may have cascaded on the server: refresh whatever e
	// referenced and is still cached
	for _, r := range refs {
		if r != nil && d.cache.Get(r) != nil {
			d.refreshInBackground(r)
		}
	}
	return nil
}

func (d *defaultDao) Wait() {
	d.runner.Wait()
}

// send runs req through the limiter and triages failures
func (d *defaultDao) send(ctx context.Context, req *Request) (*Response, error) {
	resp, err := throttle.Run(ctx, d.limiter, func(ctx context.Context) (*Response, error) {
		return d.transport.Do(ctx, req)
	})
	if err != nil {
		return nil, d.triage(ctx, req, err)
	}
	if resp == nil {
		return nil, ErrMalformedResponse(req.URL, "empty response")
	}
	return resp, nil
}

// detached adapts fn for a call shared between callers: it runs on a
// context that no single caller can cancel, bounded by the background timeout,
// and panics become errors.
func (d *defaultDao) detached(ctx context.Context, name string, fn func(ctx context.Context) (any, error)) func() (any, error) {
	return func() (v any, err error) {
		defer func() {
			if rec := routine.Recover(d.logger, name, recover()); rec != nil {
				err = routine.ErrPanic(rec)
			}
		}()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.backgroundTimeout)
		defer cancel()
		return fn(ctx)
	}
}

func (d *defaultDao) refreshInBackground(e entity.Entity) {
	key := entity.KeyForObject(e)
	if key == "" {
		return
	}
	typeName, id := e.Type().Name, e.ID()
	d.runner.GoNamedWithContext(context.Background(), "refresh "+string(key), func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, d.backgroundTimeout)
		defer cancel()
		if _, err := d.Retrieve(ctx, typeName, id, nil, true); err != nil {
			d.logger.Warn("background refresh failed", zap.String("key", string(key)), zap.Error(err))
		}
	})
}

// disappear evicts e completely and detaches it from its server identity
func (d *defaultDao) disappear(e entity.Entity) {
	key := entity.KeyForObject(e)
	d.cache.StopTrackingCompletely(e)
	d.cache.StopTrackingAsReferer(e)
	entity.Forget(e)
	d.logger.Info("entity disappeared", zap.String("dao", d.name), zap.String("key", string(key)))
}

// track adds referer's claim on e, then settles e: nested entities stay
// claimed by e only while e itself is cached. A nil referer leaves e untracked.
func (d *defaultDao) track(e entity.Entity, referer cache.Referer) error {
	if referer != nil {
		if err := d.cache.Track(e, referer); err != nil {
			return err
		}
	}
	d.settle(e)
	return nil
}

func (d *defaultDao) settle(e entity.Entity) {
	if !d.cache.Settle(e, dependents(e)) {
		d.logger.Debug("released claims of uncached entity", zap.String("dao", d.name), zap.String("key", string(entity.KeyForObject(e))))
	}
}

// dependents are the entities e holds claims on: the items of a to-many,
// the directly referenced entities of anything else
func dependents(e entity.Entity) []entity.Entity {
	if tm, ok := e.(*entity.ToMany); ok {
		return tm.Items()
	}
	return related(e)
}

func (d *defaultDao) fresh(e entity.Entity) bool {
	at := e.LastReloaded()
	return !at.IsZero() && d.now().Sub(at) < d.staleAfter
}

// finish records err on the signal and publishes it
func (d *defaultDao) finish(b *signal.Builder, err error) {
	if err != nil {
		b.Err(err)
		if errors.Is(err, entity.ErrFatal) {
			d.logger.Error("contract violation", zap.String("dao", d.name), zap.Error(err))
		}
	}
	d.publish(b)
}

func (d *defaultDao) publish(b *signal.Builder) {
	s, err := b.Build()
	if err != nil {
		d.logger.Error("failed to build signal", zap.String("dao", d.name), zap.Error(err))
		return
	}
	d.bus.Publish(s)
}

// requestBody serializes e with its type, identifier and version
func requestBody(e entity.Entity) entity.Payload {
	p := entity.Payload{}
	for k, v := range e.Snapshot() {
		p[k] = v
	}
	p[entity.TypeField] = e.Type().Name
	if id := e.ID(); id != "" {
		p[entity.IDField] = id
	}
	if v, ok := e.(entity.Versioned); ok && v.Version() != 0 {
		p[entity.VersionField] = v.Version()
	}
	return p
}
