package cron

import "fmt"

var (
	// ErrNoTasks is returned when attempting to add a job with no tasks
	ErrNoTasks = fmt.Errorf("cron: no tasks provided")

	// ErrSchedulerClosed is returned when attempting to operate on a closed scheduler
	ErrSchedulerClosed = fmt.Errorf("cron: scheduler is closed")
)

// ErrInvalidConfig returns an error for invalid configuration
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("cron: invalid config: %s", msg)
}

// ErrInvalidSpec is returned when a cron spec cannot be parsed
func ErrInvalidSpec(job, spec string, err error) error {
	return fmt.Errorf("cron: job %s: invalid spec %q: %w", job, spec, err)
}

// ErrDuplicateJob is returned when a job name is already scheduled
func ErrDuplicateJob(name string) error {
	return fmt.Errorf("cron: job %s already exists", name)
}

// ErrUnknownJob is returned by RunNow for a name that was never added
func ErrUnknownJob(name string) error {
	return fmt.Errorf("cron: unknown job %s", name)
}
