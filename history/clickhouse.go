package history

import (
	"context"
	"fmt"
	"time"

	"github.com/dailyyoga/objsync/ch"
	"github.com/dailyyoga/objsync/logger"
	"github.com/dailyyoga/objsync/signal"
	"go.uber.org/zap"
)

const snapshotDDL = `CREATE TABLE IF NOT EXISTS %s (
	at DateTime64(3, 'UTC'),
	cache LowCardinality(String),
	type_name LowCardinality(String),
	entries UInt32,
	referers UInt32,
	avg_referers Decimal(18, 4),
	oldest_age_ms UInt64
) ENGINE = MergeTree
ORDER BY (cache, at, type_name)
TTL toDateTime(at) + INTERVAL %d SECOND`

const actionDDL = `CREATE TABLE IF NOT EXISTS %s (
	id String,
	at DateTime64(3, 'UTC'),
	origin String,
	source LowCardinality(String),
	action LowCardinality(String),
	url String,
	subject String,
	created String,
	disappeared String,
	error LowCardinality(String)
) ENGINE = MergeTree
ORDER BY (at, subject)`

// MigrateClickHouse creates the history tables
func MigrateClickHouse(ctx context.Context, client ch.Client, cfg *Config) error {
	cfg = cfg.MergeDefaults()
	ttl := int64(cfg.Retention / time.Second)
	if cfg.Retention < 0 {
		// the table always carries a TTL; a century stands in for forever
		ttl = int64(100 * 365 * 24 * time.Hour / time.Second)
	}
	if err := client.Exec(ctx, fmt.Sprintf(snapshotDDL, cfg.SnapshotTable, ttl)); err != nil {
		return err
	}
	return client.Exec(ctx, fmt.Sprintf(actionDDL, cfg.ActionTable))
}

type snapshotRow struct {
	table     string
	snapshot  *Snapshot
	line      Line
	oldestAge time.Duration
}

func (r *snapshotRow) Table() string { return r.table }

func (r *snapshotRow) Columns() []string {
	return []string{"at", "cache", "type_name", "entries", "referers", "avg_referers", "oldest_age_ms"}
}

func (r *snapshotRow) Values() []any {
	return []any{
		r.snapshot.At.UTC(),
		r.snapshot.Cache,
		r.line.Type,
		uint32(r.line.Entries),
		uint32(r.line.Referers),
		r.line.AvgReferers,
		uint64(r.oldestAge.Milliseconds()),
	}
}

// ClickHouseRecorder writes snapshot lines through a batch writer. TTL on the
// table handles retention.
type ClickHouseRecorder struct {
	writer ch.Writer
	table  string
}

// NewClickHouseRecorder creates a recorder writing to cfg.SnapshotTable
func NewClickHouseRecorder(w ch.Writer, cfg *Config) *ClickHouseRecorder {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &ClickHouseRecorder{writer: w, table: cfg.MergeDefaults().SnapshotTable}
}

func (r *ClickHouseRecorder) Name() string { return "clickhouse" }

func (r *ClickHouseRecorder) Record(ctx context.Context, s Snapshot) error {
	rows := make([]ch.Row, len(s.Lines))
	for i, line := range s.Lines {
		age := time.Duration(0)
		if line.Type == AllTypes {
			age = s.OldestAge
		}
		rows[i] = &snapshotRow{table: r.table, snapshot: &s, line: line, oldestAge: age}
	}
	return r.writer.Write(ctx, rows...)
}

// ActionRow is the ClickHouse form of a completed action
type ActionRow struct {
	table string
	env   signal.Envelope
}

func (r *ActionRow) Table() string { return r.table }

func (r *ActionRow) Columns() []string {
	return []string{"id", "at", "origin", "source", "action", "url", "subject", "created", "disappeared", "error"}
}

func (r *ActionRow) Values() []any {
	return []any{
		r.env.ID,
		r.env.At,
		r.env.Origin,
		r.env.Source,
		string(r.env.Action),
		r.env.URL,
		string(r.env.Subject),
		string(r.env.Created),
		string(r.env.Disappeared),
		r.env.Error,
	}
}

// NewActionLog returns a bus handler appending every action to the action
// table. Write failures are logged and dropped.
func NewActionLog(log logger.Logger, w ch.Writer, cfg *Config, origin string) signal.Handler {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	table := cfg.MergeDefaults().ActionTable
	return func(s *signal.ActionCompleted) {
		row := &ActionRow{table: table, env: signal.NewEnvelope(s, origin)}
		if err := w.Write(context.Background(), row); err != nil {
			log.Warn("failed to log action",
				zap.String("action", string(s.Action())),
				zap.String("subject", string(s.SubjectKey())),
				zap.Error(err),
			)
		}
	}
}
