package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned by Submit before Start or after Stop
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull means the sweep backlog already holds QueueSize jobs
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrUnknownJobKind is returned for job kinds without a registered executor
	ErrUnknownJobKind = errors.New("unknown job kind")

	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
