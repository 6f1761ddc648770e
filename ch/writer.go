package ch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dailyyoga/objsync/logger"
	"github.com/dailyyoga/objsync/routine"
	"github.com/smallnest/chanx"
	"go.uber.org/zap"
)

type defaultWriter struct {
	config   *WriterConfig
	logger   logger.Logger
	inserter Inserter
	runner   routine.Runner

	// rows feeds the process loop; closing In stops it after a final flush
	rows   *chanx.UnboundedChan[Row]
	cancel context.CancelFunc

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewWriter creates a batch writer over ins
func NewWriter(log logger.Logger, cfg *WriterConfig, ins Inserter) Writer {
	if cfg == nil {
		cfg = DefaultWriterConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if log == nil {
		log = logger.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	log.Info("clickhouse writer initialized",
		zap.Duration("flush_interval", cfg.FlushInterval),
		zap.Int("flush_size", cfg.FlushSize),
		zap.Int("min_flush_size", cfg.MinFlushSize),
		zap.Duration("max_wait_time", cfg.MaxWaitTime),
	)
	return &defaultWriter{
		config:   cfg,
		logger:   log,
		inserter: ins,
		runner:   routine.New(log),
		rows:     chanx.NewUnboundedChan[Row](ctx, cfg.FlushSize),
		cancel:   cancel,
	}
}

func (w *defaultWriter) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if w.started {
		return nil
	}
	w.started = true
	w.runner.GoNamed("clickhouse writer", w.processLoop)
	w.logger.Info("clickhouse writer started")
	return nil
}

func (w *defaultWriter) Write(ctx context.Context, rows ...Row) error {
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if n, m := len(row.Columns()), len(row.Values()); n != m {
			return ErrColumnMismatch(row.Table(), n, m)
		}
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}
	if !w.started {
		return ErrWriterNotStarted
	}

	for _, row := range rows {
		select {
		case w.rows.In <- row:
		case <-ctx.Done():
			return ctx.Err()
		default:
			w.logger.Error("channel is full, data may be lost",
				zap.Int("pending", w.rows.Len()),
				zap.Int("rows", len(rows)),
			)
			return ErrBufferFull
		}
	}
	return nil
}

// Close stops accepting rows, flushes what is pending and waits for the
// final insert
func (w *defaultWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	started := w.started
	close(w.rows.In)
	w.mu.Unlock()

	w.logger.Info("clickhouse writer shutting down")
	if started {
		w.runner.Wait()
	}
	w.cancel()
	w.logger.Info("clickhouse writer shutdown complete")
	return nil
}

func (w *defaultWriter) processLoop() {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	b := newBatch()
	for {
		select {
		case row, ok := <-w.rows.Out:
			if !ok {
				if b.size > 0 {
					w.flush(b)
				}
				w.logger.Info("process loop stopped")
				return
			}
			if row == nil {
				continue
			}
			b.add(row)
			if b.size >= w.config.FlushSize {
				w.flush(b)
				b = newBatch()
			}

		case <-ticker.C:
			if b.size == 0 {
				continue
			}
			if w.shouldFlush(b) {
				w.flush(b)
				b = newBatch()
			} else {
				w.logger.Debug("skipping flush, waiting for more data",
					zap.Int("current_rows", b.size),
					zap.Int("min_flush_size", w.config.MinFlushSize),
					zap.Duration("waited", time.Since(b.first)),
				)
			}
		}
	}
}

// shouldFlush applies the MinFlushSize and MaxWaitTime strategy to a tick
func (w *defaultWriter) shouldFlush(b *batch) bool {
	if w.config.MinFlushSize == 0 || b.size >= w.config.MinFlushSize {
		return true
	}
	return w.config.MaxWaitTime > 0 && time.Since(b.first) >= w.config.MaxWaitTime
}

func (w *defaultWriter) flush(b *batch) {
	success, failed := 0, 0
	for _, g := range b.groups {
		ctx, cancel := context.WithTimeout(context.Background(), w.config.InsertTimeout)
		err := w.inserter.Insert(ctx, g.table, g.columns, g.values)
		cancel()
		if err != nil {
			w.logger.Error("failed to batch insert",
				zap.String("table", g.table),
				zap.Int("rows", len(g.values)),
				zap.Error(err),
			)
			failed += len(g.values)
			continue
		}
		success += len(g.values)
	}

	w.logger.Info("flush completed",
		zap.Int("total_rows", b.size),
		zap.Int("success_rows", success),
		zap.Int("failed_rows", failed),
	)
}

// batch groups pending rows by table and column list, in arrival order
type batch struct {
	groups []*group
	index  map[string]*group
	size   int
	first  time.Time
}

type group struct {
	table   string
	columns []string
	values  [][]any
}

func newBatch() *batch {
	return &batch{index: make(map[string]*group)}
}

func (b *batch) add(row Row) {
	if b.size == 0 {
		b.first = time.Now()
	}
	columns := row.Columns()
	key := row.Table() + "(" + strings.Join(columns, ",") + ")"
	g, ok := b.index[key]
	if !ok {
		g = &group{table: row.Table(), columns: columns}
		b.index[key] = g
		b.groups = append(b.groups, g)
	}
	g.values = append(g.values, row.Values())
	b.size++
}
