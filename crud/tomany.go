package crud

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dailyyoga/objsync/cache"
	"github.com/dailyyoga/objsync/dedup"
	"github.com/dailyyoga/objsync/entity"
	"github.com/dailyyoga/objsync/signal"
	"go.uber.org/zap"
)

func (d *defaultDao) RetrieveToMany(ctx context.Context, owner entity.Entity, property string, referer cache.Referer, opts ListOptions) (tm *entity.ToMany, err error) {
	b := signal.NewBuilder(signal.ActionRetrieve, d.name)
	defer func() { d.finish(b, err) }()

	if owner == nil || owner.ID() == "" {
		return nil, ErrPreconditionFailed("retrieve to-many", "owner must have an identifier")
	}
	tmo, ok := owner.(entity.ToManyOwner)
	if !ok {
		return nil, ErrPreconditionFailed("retrieve to-many", fmt.Sprintf("%s has no to-many relations", entity.KeyForObject(owner)))
	}
	if tm = tmo.ToMany(property); tm == nil {
		return nil, ErrPreconditionFailed("retrieve to-many", fmt.Sprintf("%s has no relation %q", entity.KeyForObject(owner), property))
	}

	typeName, id := owner.Type().Name, owner.ID()
	req := &Request{
		Method: http.MethodGet,
		URL:    d.urls.RelationURL(typeName, id, property),
		Type:   typeName,
		ID:     id,
		Range:  opts.Range(),
	}
	b.Subject(tm).URL(req.URL)

	ch := d.arbiter.DoChan(tm.ID(), d.detached(ctx, "fetch "+tm.ID(), func(ctx context.Context) (any, error) {
		return nil, d.fill(ctx, req, tm)
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
	if err := d.track(tm, referer); err != nil {
		return nil, err
	}
	return tm, nil
}

// fill replaces the items of tm. New items are tracked with tm as referer,
// items that left the relation lose that referer.
func (d *defaultDao) fill(ctx context.Context, req *Request, tm *entity.ToMany) error {
	resp, err := d.send(ctx, req)
	if err != nil {
		return err
	}

	old := tm.Items()
	items, err := d.reviveList(ctx, req.URL, resp.Body, "", tm)
	if err != nil {
		d.release(tm, items, old)
		return err
	}

	total := resp.Total
	if total < 0 && req.Range == nil {
		total = len(items)
	}
	tm.Fill(items, total, d.now())
	d.release(tm, old, items)

	d.logger.Debug("to-many retrieved",
		zap.String("dao", d.name),
		zap.String("relation", tm.ID()),
		zap.Int("items", len(items)),
		zap.Int("total", total),
	)
	return nil
}

// release drops referer from every entity of from that is not in keep
func (d *defaultDao) release(referer cache.Referer, from, keep []entity.Entity) {
	kept := make(map[entity.Entity]struct{}, len(keep))
	for _, e := range keep {
		kept[e] = struct{}{}
	}
	for _, e := range from {
		if _, ok := kept[e]; !ok {
			d.cache.StopTracking(e, referer)
		}
	}
}

func (d *defaultDao) SearchInto(ctx context.Context, result *entity.Collection, typeName string, query url.Values, opts ListOptions) (err error) {
	b := signal.NewBuilder(signal.ActionRetrieve, d.name)
	defer func() { d.finish(b, err) }()

	if result == nil || typeName == "" {
		return ErrPreconditionFailed("search", "result and type are required")
	}
	req := &Request{
		Method: http.MethodGet,
		URL:    d.urls.SearchURL(typeName, query),
		Type:   typeName,
		Range:  opts.Range(),
	}
	b.URL(req.URL)

	resp, err := d.send(ctx, req)
	if err != nil {
		return err
	}
	items, err := d.reviveList(ctx, req.URL, resp.Body, typeName, nil)
	// search results are unowned: uncached ones drop their nested claims
	for _, it := range items {
		d.settle(it)
	}
	if err != nil {
		return err
	}

	total := resp.Total
	if total < 0 && req.Range == nil {
		total = len(items)
	}
	result.Fill(items, total, d.now())
	return nil
}

// reviveList revives a JSON list. On error the items revived so far are
// returned with it.
func (d *defaultDao) reviveList(ctx context.Context, reqURL string, body any, defaultType string, referer cache.Referer) ([]entity.Entity, error) {
	if body == nil {
		return nil, nil
	}
	list, ok := body.([]any)
	if !ok {
		return nil, ErrMalformedResponse(reqURL, "expected a list")
	}
	items := make([]entity.Entity, 0, len(list))
	for i, raw := range list {
		p, ok := entity.AsPayload(raw)
		if !ok {
			return items, ErrMalformedResponse(reqURL, fmt.Sprintf("item %d is not an object", i))
		}
		if p.TypeName() == "" && defaultType != "" {
			p[entity.TypeField] = defaultType
		}
		e, err := d.reviver.Revive(ctx, p, referer)
		if err != nil {
			return items, err
		}
		items = append(items, e)
	}
	return items, nil
}
