package signal

import (
	"sync"

	"github.com/dailyyoga/objsync/logger"
	"github.com/dailyyoga/objsync/routine"
	"go.uber.org/zap"
)

// Handler receives published signals
type Handler func(s *ActionCompleted)

// Bus delivers signals to subscribers
type Bus interface {
	// Publish delivers s synchronously to every subscriber, in subscription
	// order. A panicking subscriber is logged and skipped.
	Publish(s *ActionCompleted)

	// Subscribe registers h; the returned function unsubscribes it
	Subscribe(h Handler) func()
}

type subscription struct {
	id int
	h  Handler
}

type defaultBus struct {
	logger logger.Logger

	mu     sync.RWMutex
	subs   []subscription
	nextID int
}

// NewBus creates an in-process bus
func NewBus(log logger.Logger) Bus {
	if log == nil {
		log = logger.NewNop()
	}
	return &defaultBus{logger: log}
}

func (b *defaultBus) Publish(s *ActionCompleted) {
	if s == nil {
		return
	}
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	b.logger.Debug("signal published",
		zap.String("id", s.ID().String()),
		zap.String("action", string(s.Action())),
		zap.String("source", s.Source()),
		zap.Bool("ok", s.Succeeded()),
		zap.Int("subscribers", len(subs)),
	)
	for _, sub := range subs {
		b.deliver(sub, s)
	}
}

func (b *defaultBus) deliver(sub subscription, s *ActionCompleted) {
	defer func() {
		routine.Recover(b.logger, "signal subscriber", recover())
	}()
	sub.h(s)
}

func (b *defaultBus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, h: h})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, sub := range b.subs {
				if sub.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}
