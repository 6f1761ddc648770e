// Package ch writes objsync history to ClickHouse.
//
// Rows are buffered by a Writer and inserted in batches per table, either
// when FlushSize rows are pending or on the flush interval. Every row type
// has a fixed column list, so no schema introspection is needed.
package ch

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Row is one record of a history table
type Row interface {
	// Table is the target table name
	Table() string
	// Columns lists the inserted columns, in the order of Values
	Columns() []string
	Values() []any
}

// Writer buffers rows and inserts them in batches
type Writer interface {
	Start() error
	Close() error
	Write(ctx context.Context, rows ...Row) error
}

// Client is the ClickHouse client used for schema setup, queries and batch writes
type Client interface {
	// Writer returns the batch writer; Start must be called before writing
	Writer() (Writer, error)
	// Exec runs a statement without result, e.g. CREATE TABLE
	Exec(ctx context.Context, query string, args ...any) error
	// Query executes a ClickHouse query and returns driver.Rows
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	// Close closes the writer and the connection
	Close() error
}

// Inserter sends one batch of rows with the same table and columns
type Inserter interface {
	Insert(ctx context.Context, table string, columns []string, rows [][]any) error
}
