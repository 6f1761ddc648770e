// Package cron schedules the periodic maintenance jobs of an objsync
// process, such as recording cache snapshots.
//
// A Job is a named chain of tasks run sequentially on a cron spec with
// seconds (6 fields) or a descriptor such as "@every 1m". A failing task
// aborts the rest of its chain. Tasks of one run exchange values through
// the Shared store carried by their context.
package cron

import (
	"context"
)

// Task is one step of a job
type Task interface {
	// Name returns the unique identifier for this task
	Name() string
	Run(ctx context.Context) error
}

// Job is a chain of tasks run on a schedule
type Job struct {
	Name  string
	Spec  string
	Tasks []Task
}

// Scheduler runs jobs
type Scheduler interface {
	// Start begins the scheduler
	Start()
	// Close stops the scheduler and waits for running jobs to complete
	Close()
	// Add schedules job; names must be unique
	Add(job Job) error
	// RunNow runs the named job synchronously, outside its schedule
	RunNow(ctx context.Context, name string) error
	// Jobs lists the scheduled job names in the order they were added
	Jobs() []string
}

// TaskFunc adapts a function to a Task
type TaskFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewTask creates a Task from fn
func NewTask(name string, fn func(ctx context.Context) error) *TaskFunc {
	return &TaskFunc{name: name, fn: fn}
}

func (t *TaskFunc) Name() string                  { return t.name }
func (t *TaskFunc) Run(ctx context.Context) error { return t.fn(ctx) }
