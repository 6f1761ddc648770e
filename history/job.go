package history

import (
	"context"
	"errors"

	"github.com/dailyyoga/objsync/cache"
	"github.com/dailyyoga/objsync/cron"
	"github.com/dailyyoga/objsync/logger"
	"go.uber.org/zap"
)

// JobName is the name of the snapshot job
const JobName = "cache-history"

const snapshotKey = "history:snapshot"

// NewJob builds the snapshot job: take a snapshot of c, hand it to every
// recorder, then prune what is past retention. Recorder failures are
// collected so that one broken sink does not starve the others.
func NewJob(log logger.Logger, c cache.Cache, cfg *Config, recorders ...Recorder) (cron.Job, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return cron.Job{}, err
	}
	if len(recorders) == 0 {
		return cron.Job{}, ErrNoRecorders
	}
	if log == nil {
		log = logger.NewNop()
	}

	take := cron.NewTask("snapshot", func(ctx context.Context) error {
		s := NewSnapshot(c.Report())
		cron.SharedFrom(ctx).Set(snapshotKey, s)
		total := s.Total()
		log.Debug("cache snapshot taken",
			zap.String("cache", s.Cache),
			zap.Int("entries", total.Entries),
			zap.Int("referers", total.Referers),
			zap.String("avg_referers", total.AvgReferers.String()),
		)
		return nil
	})

	record := cron.NewTask("record", func(ctx context.Context) error {
		s, ok := cron.Value[Snapshot](ctx, snapshotKey)
		if !ok {
			return ErrNoSnapshot
		}
		var errs []error
		for _, r := range recorders {
			if err := r.Record(ctx, s); err != nil {
				errs = append(errs, ErrRecord(r.Name(), err))
			}
		}
		return errors.Join(errs...)
	})

	tasks := []cron.Task{take, record}
	if cfg.Retention > 0 {
		tasks = append(tasks, cron.NewTask("prune", func(ctx context.Context) error {
			s, ok := cron.Value[Snapshot](ctx, snapshotKey)
			if !ok {
				return ErrNoSnapshot
			}
			before := s.At.Add(-cfg.Retention)
			var errs []error
			for _, r := range recorders {
				if p, ok := r.(Pruner); ok {
					if err := p.Prune(ctx, s.Cache, before); err != nil {
						errs = append(errs, ErrRecord(r.Name(), err))
					}
				}
			}
			return errors.Join(errs...)
		}))
	}

	return cron.Job{Name: JobName, Spec: cfg.Spec, Tasks: tasks}, nil
}

// Schedule adds the snapshot job to s
func Schedule(s cron.Scheduler, log logger.Logger, c cache.Cache, cfg *Config, recorders ...Recorder) error {
	job, err := NewJob(log, c, cfg, recorders...)
	if err != nil {
		return err
	}
	return s.Add(job)
}
