// Package app assembles a Dao and its infrastructure from a config.Config.
//
// New builds, in order: the logger, the entity cache, the signal bus, the
// HTTP transport and the Dao. Optional sections add the Kafka forwarder and
// consumer, the ClickHouse action log and snapshot recorder, the MySQL
// snapshot recorder and the snapshot job. Start begins background work and
// Close tears everything down in reverse order.
package app

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/dailyyoga/objsync/cache"
	"github.com/dailyyoga/objsync/ch"
	"github.com/dailyyoga/objsync/config"
	"github.com/dailyyoga/objsync/cron"
	"github.com/dailyyoga/objsync/crud"
	"github.com/dailyyoga/objsync/db"
	"github.com/dailyyoga/objsync/entity"
	"github.com/dailyyoga/objsync/history"
	"github.com/dailyyoga/objsync/kafka"
	"github.com/dailyyoga/objsync/logger"
	"github.com/dailyyoga/objsync/rest"
	"github.com/dailyyoga/objsync/signal"
	"github.com/dailyyoga/objsync/throttle"
	"go.uber.org/zap"
)

// App holds the assembled components
type App struct {
	Logger    logger.Logger
	Cache     cache.Cache
	Bus       signal.Bus
	Dao       crud.Dao
	Scheduler cron.Scheduler

	origin   string
	consumer kafka.Consumer
	writer   ch.Writer

	mu      sync.Mutex
	started bool
	closed  bool
	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Option customizes New
type Option func(*options)

type options struct {
	log            logger.Logger
	client         *http.Client
	token          rest.TokenSource
	onUnauthorized crud.UnauthorizedFunc
	recorders      []history.Recorder
	origin         string
	newClickHouse  func(*ch.Config, logger.Logger) (ch.Client, error)
}

// WithLogger replaces the logger built from the logger section
func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithHTTPClient sets the client used by the transport
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithToken sets the bearer token source of the transport
func WithToken(ts rest.TokenSource) Option {
	return func(o *options) { o.token = ts }
}

// WithUnauthorized sets the handler called on 401 answers
func WithUnauthorized(fn crud.UnauthorizedFunc) Option {
	return func(o *options) { o.onUnauthorized = fn }
}

// WithRecorders adds snapshot recorders to the ones built from the config
func WithRecorders(recorders ...history.Recorder) Option {
	return func(o *options) { o.recorders = append(o.recorders, recorders...) }
}

// WithOrigin overrides the process origin carried by forwarded signals
func WithOrigin(origin string) Option {
	return func(o *options) { o.origin = origin }
}

// New builds every configured component. On failure the components built so
// far are closed.
func New(ctx context.Context, cfg *config.Config, registry *entity.Registry, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}
	cfg.MergeDefaults()

	o := &options{newClickHouse: ch.NewClient}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{origin: o.origin}
	if a.origin == "" {
		a.origin = signal.Origin()
	}
	if err := a.build(ctx, cfg, registry, o); err != nil {
		if cerr := a.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config, registry *entity.Registry, o *options) error {
	a.Logger = o.log
	if a.Logger == nil {
		log, err := logger.New(cfg.Logger)
		if err != nil {
			return err
		}
		a.Logger = log
		a.onClose("logger", func() error {
			_ = log.Sync()
			return nil
		})
	}

	c, err := cache.New(a.Logger, cfg.Cache)
	if err != nil {
		return err
	}
	a.Cache = c
	a.Bus = signal.NewBus(a.Logger)

	restCfg := *cfg.Rest
	if o.token != nil {
		restCfg.Token = o.token
	}
	transport, err := rest.New(a.Logger, &restCfg, o.client)
	if err != nil {
		return err
	}

	deps := &crud.Deps{
		Cache:          a.Cache,
		Transport:      transport,
		URLs:           rest.PathBuilder{BaseURL: restCfg.BaseURL},
		Registry:       registry,
		Bus:            a.Bus,
		OnUnauthorized: o.onUnauthorized,
		Origin:         a.origin,
	}
	if cfg.Throttle != nil {
		limiter, err := throttle.New(a.Logger, cfg.Throttle)
		if err != nil {
			return err
		}
		deps.Limiter = limiter
	}
	dao, err := crud.New(a.Logger, cfg.Crud, deps)
	if err != nil {
		return err
	}
	a.Dao = dao
	a.onClose("dao", func() error {
		dao.Wait()
		return nil
	})

	if cfg.Kafka != nil {
		if err := a.buildKafka(cfg.Kafka); err != nil {
			return err
		}
	}

	recorders := append([]history.Recorder(nil), o.recorders...)
	if cfg.ClickHouse != nil {
		r, err := a.buildClickHouse(ctx, o.newClickHouse, cfg.ClickHouse, cfg.History)
		if err != nil {
			return err
		}
		if cfg.History != nil {
			recorders = append(recorders, r)
		}
	}
	if cfg.MySQL != nil && cfg.History != nil {
		r, err := a.buildMySQL(ctx, cfg.MySQL)
		if err != nil {
			return err
		}
		recorders = append(recorders, r)
	}

	s, err := cron.New(a.Logger, cfg.Cron)
	if err != nil {
		return err
	}
	a.Scheduler = s
	a.onClose("scheduler", func() error {
		s.Close()
		return nil
	})
	if cfg.History != nil {
		if err := history.Schedule(s, a.Logger, a.Cache, cfg.History, recorders...); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) buildKafka(cfg *kafka.Config) error {
	if cfg.Producer != nil {
		producer, err := kafka.NewProducer(a.Logger, cfg.Producer)
		if err != nil {
			return err
		}
		a.onClose("kafka producer", producer.Close)
		forwarder, err := signal.NewKafkaForwarder(a.Logger, producer, cfg.Topic, a.origin)
		if err != nil {
			return err
		}
		detach := forwarder.Attach(a.Bus)
		a.onClose("kafka forwarder", func() error {
			detach()
			return nil
		})
	}
	if cfg.Consumer != nil {
		consumer, err := kafka.NewConsumer(a.Logger, cfg.Consumer)
		if err != nil {
			return err
		}
		a.consumer = consumer
		a.onClose("kafka consumer", consumer.Close)
	}
	return nil
}

func (a *App) buildClickHouse(ctx context.Context, connect func(*ch.Config, logger.Logger) (ch.Client, error), cfg *ch.Config, hcfg *history.Config) (history.Recorder, error) {
	chCfg := *cfg
	if chCfg.Writer == nil {
		chCfg.Writer = ch.DefaultWriterConfig()
	}
	client, err := connect(&chCfg, a.Logger)
	if err != nil {
		return nil, err
	}
	// closing the client also flushes and closes its writer
	a.onClose("clickhouse", client.Close)
	if hcfg == nil {
		hcfg = history.DefaultConfig()
	}
	if err := history.MigrateClickHouse(ctx, client, hcfg); err != nil {
		return nil, err
	}
	w, err := client.Writer()
	if err != nil {
		return nil, err
	}
	a.writer = w
	unsubscribe := a.Bus.Subscribe(history.NewActionLog(a.Logger, a.writer, hcfg, a.origin))
	a.onClose("action log", func() error {
		unsubscribe()
		return nil
	})
	return history.NewClickHouseRecorder(a.writer, hcfg), nil
}

func (a *App) buildMySQL(ctx context.Context, cfg *db.Config) (history.Recorder, error) {
	database, err := db.NewMySQL(a.Logger, cfg)
	if err != nil {
		return nil, err
	}
	a.onClose("mysql", database.Close)
	return history.NewMySQLRecorder(ctx, database)
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Start begins background work: the ClickHouse writer, the remote signal
// consumer and the scheduler. Remote signals are handled by the Dao until ctx
// is done or Close is called.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if a.started {
		return nil
	}
	if a.writer != nil {
		if err := a.writer.Start(); err != nil {
			return err
		}
	}
	if a.consumer != nil {
		handler := signal.KafkaHandler(a.Logger, a.origin, a.Dao.HandleRemote)
		if err := a.consumer.Start(ctx, handler); err != nil {
			return err
		}
	}
	a.Scheduler.Start()
	a.started = true
	a.Logger.Info("objsync started", zap.String("origin", a.origin))
	return nil
}

// Close stops every component in reverse construction order and returns the
// joined errors. It is safe to call more than once.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.fn(); err != nil {
			if a.Logger != nil {
				a.Logger.Error("failed to close component", zap.String("component", c.name), zap.Error(err))
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
