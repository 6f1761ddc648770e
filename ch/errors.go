package ch

import (
	"fmt"
)

var (
	// ErrBufferFull when buffer is full, please retry later
	ErrBufferFull = fmt.Errorf("ch: buffer is full, please retry later")

	// ErrWriterClosed when writer is closed
	ErrWriterClosed = fmt.Errorf("ch: writer is closed")

	// ErrWriterNotStarted when rows are written before Start
	ErrWriterNotStarted = fmt.Errorf("ch: writer is not started")

	// ErrConnectionClosed when connection is closed
	ErrConnectionClosed = fmt.Errorf("ch: connection is closed")

	// ErrWriterDisabled when writer is not enabled (Config.Writer is nil)
	ErrWriterDisabled = fmt.Errorf("ch: writer is disabled, please set Config.Writer to enable")
)

// ErrInvalidConfig invalid config
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("ch: invalid config: %s", msg)
}

// ErrConnection ClickHouse connection error
func ErrConnection(err error) error {
	return fmt.Errorf("ch: connection failed: %w", err)
}

// ErrInsert insert error
func ErrInsert(table string, err error) error {
	return fmt.Errorf("ch: insert to table %s failed: %w", table, err)
}

// ErrColumnMismatch is returned when a row's values do not match its columns
func ErrColumnMismatch(table string, columns, values int) error {
	return fmt.Errorf("ch: table %s: %d values for %d columns", table, values, columns)
}
