// Package history records how the object cache evolves over time.
//
// A scheduled job turns cache reports into snapshots (entries and referers
// per type) and hands them to recorders backed by ClickHouse or MySQL.
// ActionLog additionally appends every completed action to ClickHouse.
package history

import (
	"context"
	"time"
)

// Recorder persists snapshots
type Recorder interface {
	Name() string
	Record(ctx context.Context, s Snapshot) error
}

// Pruner is implemented by recorders that drop old snapshots
type Pruner interface {
	Prune(ctx context.Context, cache string, before time.Time) error
}
