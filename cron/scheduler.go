package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dailyyoga/objsync/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// chainJob runs its tasks sequentially; the first failure aborts the chain
type chainJob struct {
	name   string
	tasks  []Task
	logger logger.Logger
}

func (j *chainJob) run(ctx context.Context) error {
	ctx = withShared(ctx)
	for _, task := range j.tasks {
		if err := task.Run(ctx); err != nil {
			j.logger.Warn("job aborted",
				zap.String("job", j.name),
				zap.String("task", task.Name()),
				zap.Error(err),
			)
			return err
		}
	}
	j.logger.Debug("job completed", zap.String("job", j.name))
	return nil
}

// Run implements cron.Job
func (j *chainJob) Run() {
	_ = j.run(context.Background())
}

type defaultScheduler struct {
	cron        *cron.Cron
	middlewares []Middleware
	logger      logger.Logger

	mu     sync.Mutex
	jobs   map[string]*chainJob
	order  []string
	closed bool
}

// New creates a scheduler. Recovery, Logging and Timeout(cfg.TaskTimeout)
// wrap every task, followed by mws.
func New(log logger.Logger, cfg *Config, mws ...Middleware) (Scheduler, error) {
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
	loc, _ := time.LoadLocation(cfg.Location)

	opts := []cron.Option{
		cron.WithSeconds(),
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{log}),
	}
	if !cfg.AllowOverlap {
		opts = append(opts, cron.WithChain(cron.SkipIfStillRunning(cronLogger{log})))
	}

	defaults := []Middleware{Recovery(log), Logging(log), Timeout(cfg.TaskTimeout)}
	return &defaultScheduler{
		cron:        cron.New(opts...),
		middlewares: append(defaults, mws...),
		logger:      log,
		jobs:        make(map[string]*chainJob),
	}, nil
}

func (s *defaultScheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Strings("jobs", s.Jobs()))
}

func (s *defaultScheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *defaultScheduler) Add(job Job) error {
	if len(job.Tasks) == 0 {
		return ErrNoTasks
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}
	if _, ok := s.jobs[job.Name]; ok {
		return ErrDuplicateJob(job.Name)
	}

	tasks := make([]Task, len(job.Tasks))
	for i, task := range job.Tasks {
		named := NewTask(fmt.Sprintf("%s:%s", job.Name, task.Name()), task.Run)
		tasks[i] = applyMiddlewares(named, s.middlewares...)
	}
	cj := &chainJob{name: job.Name, tasks: tasks, logger: s.logger}

	if _, err := s.cron.AddJob(job.Spec, cj); err != nil {
		return ErrInvalidSpec(job.Name, job.Spec, err)
	}
	s.jobs[job.Name] = cj
	s.order = append(s.order, job.Name)

	s.logger.Info("job added",
		zap.String("job", job.Name),
		zap.String("spec", job.Spec),
		zap.Int("task_count", len(tasks)),
	)
	return nil
}

func (s *defaultScheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	cj, ok := s.jobs[name]
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSchedulerClosed
	}
	if !ok {
		return ErrUnknownJob(name)
	}
	return cj.run(ctx)
}

func (s *defaultScheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// cronLogger adapts the zap logger to cron.Logger
type cronLogger struct {
	logger logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(fields(keysAndValues), zap.Error(err))...)
}

func fields(keysAndValues []any) []zap.Field {
	out := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out = append(out, zap.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return out
}
