package throttle

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dailyyoga/objsync/logger"
	"github.com/dailyyoga/objsync/routine"
	"github.com/smallnest/chanx"
	"go.uber.org/zap"
)

type defaultLimiter struct {
	logger logger.Logger
	name   string
	max    int

	mu       sync.Mutex
	inFlight int
	// pending counts tickets sent to queue and not yet received, abandoned
	// ones included
	pending int
	queue   *chanx.UnboundedChan[*ticket]
	closed  bool
	done    chan struct{}
	cancel  context.CancelFunc

	waiting atomic.Int64
}

// New creates a new FIFO limiter
func New(log logger.Logger, cfg *Config) (Limiter, error) {
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

	ctx, cancel := context.WithCancel(context.Background())
	return &defaultLimiter{
		logger: log,
		name:   cfg.Name,
		max:    cfg.MaxInFlight,
		queue:  chanx.NewUnboundedChan[*ticket](ctx, cfg.QueueCapacity),
		done:   make(chan struct{}),
		cancel: cancel,
	}, nil
}

func (l *defaultLimiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()
	return l.run(ctx, fn)
}

func (l *defaultLimiter) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := routine.Recover(l.logger, l.name, recover()); rec != nil {
			err = routine.ErrPanic(rec)
		}
	}()
	return fn(ctx)
}

func (l *defaultLimiter) acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		l.mu.Unlock()
		return err
	}
	if l.inFlight < l.max {
		l.inFlight++
		l.mu.Unlock()
		return nil
	}

	t := newTicket()
	l.pending++
	l.waiting.Add(1)
	// sending under the lock keeps queue order equal to arrival order
	l.queue.In <- t
	l.mu.Unlock()

	l.logger.Debug("request queued",
		zap.String("limiter", l.name),
		zap.Int64("queued", l.waiting.Load()),
	)

	select {
	case <-t.ready:
		return nil
	case <-ctx.Done():
		return l.leave(t, ctx.Err())
	case <-l.done:
		return l.leave(t, ErrClosed)
	}
}

// leave withdraws a queued caller. If a slot was granted in the meantime it
// is passed on at once.
func (l *defaultLimiter) leave(t *ticket, err error) error {
	if t.abandon() {
		l.waiting.Add(-1)
		l.logger.Debug("queued request abandoned", zap.String("limiter", l.name), zap.Error(err))
		return err
	}
	l.release()
	return err
}

// release hands the slot to the oldest live ticket, or frees it.
func (l *defaultLimiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for !l.closed && l.pending > 0 {
		t, ok := <-l.queue.Out
		l.pending--
		if !ok {
			break
		}
		if t.grant() {
			l.waiting.Add(-1)
			return
		}
	}
	l.inFlight--
}

func (l *defaultLimiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

func (l *defaultLimiter) Queued() int {
	return int(l.waiting.Load())
}

func (l *defaultLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.done)
	l.cancel()
	l.logger.Info("limiter closed", zap.String("limiter", l.name), zap.Int("in_flight", l.inFlight))
	return nil
}
