package cache

import (
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/dailyyoga/objsync/entity"
	"github.com/dailyyoga/objsync/logger"
	"go.uber.org/zap"
)

// entityCache implements the Cache interface
type entityCache struct {
	logger    logger.Logger
	name      string
	evictHook EvictHook
	now       func() time.Time

	mu        sync.Mutex
	entries   map[entity.Key]*entry
	byPayload map[entity.Entity]*entry
	// byReferer indexes entries by referer so cascades do not scan the cache
	byReferer map[Referer]map[*entry]struct{}
	types     *typeIndex
}

// New creates a new entity cache
func New(log logger.Logger, cfg *Config) (Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &entityCache{
		logger:    log,
		name:      cfg.Name,
		evictHook: cfg.EvictHook,
		now:       time.Now,
		entries:   make(map[entity.Key]*entry),
		byPayload: make(map[entity.Entity]*entry),
		byReferer: make(map[Referer]map[*entry]struct{}),
		types:     newTypeIndex(),
	}, nil
}

func (c *entityCache) Track(e entity.Entity, referer Referer) error {
	if err := checkTrack(e, referer); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.track(e, referer)
	return nil
}

func checkTrack(e entity.Entity, referer Referer) error {
	if e == nil {
		return ErrNilEntity
	}
	if referer == nil {
		return ErrNilReferer
	}
	if !reflect.TypeOf(referer).Comparable() {
		return ErrIncomparableReferer(referer)
	}
	if entity.KeyForObject(e) == "" {
		return ErrNoIdentity(e)
	}
	return nil
}

// track must be called with c.mu held and arguments checked
func (c *entityCache) track(e entity.Entity, referer Referer) {
	key := entity.KeyForObject(e)
	c.types.register(e.Type())

	en, ok := c.entries[key]
	if !ok {
		en = newEntry(key, e, c.now())
		c.entries[key] = en
		c.byPayload[e] = en
		c.logger.Debug("entity tracked", zap.String("cache", c.name), zap.String("key", string(key)))
	} else if en.payload != e {
		// a second instance for a key already cached: keep the resident one
		// authoritative and remember the newcomer so it can be released later
		if _, known := c.byPayload[e]; !known {
			c.byPayload[e] = en
			en.aliases = append(en.aliases, e)
		}
	}
	if en.add(referer) {
		c.index(referer, en)
	}
}

func (c *entityCache) Settle(holder entity.Entity, refs []entity.Entity) bool {
	if holder == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.holds(holder) {
		c.cascade([]Referer{holder})
		return false
	}
	for _, r := range refs {
		if r == nil || r == holder || entity.KeyForObject(r) == "" {
			continue
		}
		c.track(r, holder)
	}
	return true
}

func (c *entityCache) Holds(e entity.Entity) bool {
	if e == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holds(e)
}

// holds reports whether the instance e itself is a live payload or alias
func (c *entityCache) holds(e entity.Entity) bool {
	en, ok := c.byPayload[e]
	return ok && c.entries[en.key] == en
}

func (c *entityCache) StopTracking(e entity.Entity, referer Referer) {
	if e == nil || referer == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	en := c.lookup(e)
	if en == nil {
		return
	}
	var work []Referer
	c.removeReferer(en, referer, &work)
	c.cascade(work)
}

func (c *entityCache) StopTrackingCompletely(e entity.Entity) {
	if e == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	en := c.lookup(e)
	if en == nil {
		return
	}
	refs := make([]Referer, 0, len(en.referers))
	for r := range en.referers {
		refs = append(refs, r)
	}
	var work []Referer
	for _, r := range refs {
		c.removeReferer(en, r, &work)
	}
	c.cascade(work)
	c.logger.Debug("entity evicted completely", zap.String("cache", c.name), zap.String("key", string(en.key)))
}

func (c *entityCache) StopTrackingAsReferer(referer Referer) {
	if referer == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cascade([]Referer{referer})
}

func (c *entityCache) GetByTypeAndID(typeName, id string) entity.Entity {
	key := entity.KeyForID(typeName, id)
	if key == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if en, ok := c.entries[key]; ok {
		return en.payload
	}
	for _, sub := range c.types.subtypes[typeName] {
		if en, ok := c.entries[entity.KeyForID(sub, id)]; ok {
			return en.payload
		}
	}
	return nil
}

func (c *entityCache) GetByKey(key entity.Key) entity.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if en, ok := c.entries[key]; ok {
		return en.payload
	}
	return nil
}

func (c *entityCache) Get(e entity.Entity) entity.Entity {
	if e == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if en := c.lookup(e); en != nil {
		return en.payload
	}
	return nil
}

func (c *entityCache) RefererCount(e entity.Entity) int {
	if e == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if en := c.lookup(e); en != nil {
		return len(en.referers)
	}
	return 0
}

func (c *entityCache) Subtypes(typeName string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.types.lookup(typeName)
}

func (c *entityCache) ForEach(fn func(e entity.Entity)) {
	c.mu.Lock()
	payloads := make([]entity.Entity, 0, len(c.entries))
	for _, en := range c.entries {
		payloads = append(payloads, en.payload)
	}
	c.mu.Unlock()

	for _, p := range payloads {
		fn(p)
	}
}

func (c *entityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *entityCache) Report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := Report{
		Name:    c.name,
		At:      c.now(),
		Count:   len(c.entries),
		Entries: make([]EntryReport, 0, len(c.entries)),
	}
	for _, en := range c.entries {
		er := en.report()
		r.TotalReferers += er.Referers
		if r.Oldest.IsZero() || er.Created.Before(r.Oldest) {
			r.Oldest = er.Created
		}
		if er.Created.After(r.Newest) {
			r.Newest = er.Created
		}
		r.Entries = append(r.Entries, er)
	}
	sort.Slice(r.Entries, func(i, j int) bool {
		if !r.Entries[i].Created.Equal(r.Entries[j].Created) {
			return r.Entries[i].Created.Before(r.Entries[j].Created)
		}
		return r.Entries[i].Key < r.Entries[j].Key
	})
	return r
}

// lookup resolves e by key, falling back to payload identity for entities
// whose key changed or vanished (e.g. after deletion).
func (c *entityCache) lookup(e entity.Entity) *entry {
	if key := entity.KeyForObject(e); key != "" {
		if en, ok := c.entries[key]; ok {
			return en
		}
	}
	if en, ok := c.byPayload[e]; ok && c.entries[en.key] == en {
		return en
	}
	return nil
}

func (c *entityCache) index(referer Referer, en *entry) {
	set, ok := c.byReferer[referer]
	if !ok {
		set = make(map[*entry]struct{})
		c.byReferer[referer] = set
	}
	set[en] = struct{}{}
}

func (c *entityCache) unindex(referer Referer, en *entry) {
	set, ok := c.byReferer[referer]
	if !ok {
		return
	}
	delete(set, en)
	if len(set) == 0 {
		delete(c.byReferer, referer)
	}
}

// removeReferer drops one (entry, referer) edge and queues the payload for
// the cascade when the entry dies.
func (c *entityCache) removeReferer(en *entry, referer Referer, work *[]Referer) {
	if !en.remove(referer) {
		return
	}
	c.unindex(referer, en)
	if len(en.referers) == 0 {
		c.evict(en)
		*work = append(*work, en.payload)
		for _, a := range en.aliases {
			*work = append(*work, a)
		}
	}
}

// cascade removes each queued referer from every entry it refers to. Each
// step deletes at least one edge of a finite graph, so it terminates.
func (c *entityCache) cascade(work []Referer) {
	for len(work) > 0 {
		referer := work[0]
		work = work[1:]
		for en := range c.byReferer[referer] {
			c.removeReferer(en, referer, &work)
		}
	}
}

func (c *entityCache) evict(en *entry) {
	delete(c.entries, en.key)
	delete(c.byPayload, en.payload)
	for _, a := range en.aliases {
		delete(c.byPayload, a)
	}
	if c.evictHook != nil {
		c.evictHook(en.payload)
	}
	c.logger.Debug("entity evicted", zap.String("cache", c.name), zap.String("key", string(en.key)))
}
