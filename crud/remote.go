package crud

import (
	"context"

	"github.com/dailyyoga/objsync/signal"
	"go.uber.org/zap"
)

// HandleRemote keeps the cache consistent with actions performed by other
// processes. Deletions and disappearances of cached entities evict them,
// creates and updates trigger a background refresh. Envelopes from this
// process and for uncached entities are ignored.
func (d *defaultDao) HandleRemote(_ context.Context, env signal.Envelope) error {
	if env.Origin == d.origin {
		return nil
	}

	switch {
	case env.Disappeared != "" || (env.Action == signal.ActionDelete && env.Succeeded()):
		key := env.Disappeared
		if key == "" {
			key = env.Subject
		}
		cached := d.cache.GetByKey(key)
		if cached == nil {
			return nil
		}
		b := signal.NewBuilder(signal.ActionDelete, d.name).Subject(cached).URL(env.URL)
		d.disappear(cached)
		d.publish(b.Disappeared(cached))
		d.logger.Info("remote deletion applied", zap.String("key", string(key)), zap.String("origin", env.Origin))

	case env.Succeeded() && (env.Action == signal.ActionCreate || env.Action == signal.ActionUpdate):
		cached := d.cache.GetByKey(env.Subject)
		if cached == nil {
			return nil
		}
		d.refreshInBackground(cached)
		d.logger.Debug("remote change scheduled for refresh", zap.String("key", string(env.Subject)), zap.String("origin", env.Origin))
	}
	return nil
}
