package concurrency

import (
	"context"
	"errors"
)

// ErrExecutorClosed is returned by Submit after Shutdown.
var ErrExecutorClosed = errors.New("executor is closed")

// ExecutorStats provides statistics about executor activity
type ExecutorStats struct {
	QueuedTasks    int   // Tasks waiting in the queue
	LiveTasks      int64 // Tasks submitted but not finished (shared counter)
	ActiveWorkers  int   // Number of worker goroutines
	CompletedTasks int64 // Tasks that returned Ready
	FailedTasks    int64 // Tasks that returned an error or panicked
	Polls          int64 // Total polls performed
	Restarts       int64 // Workers restarted after a panic outside a task
}

// Executor runs tasks by polling them on a fixed set of worker goroutines.
type Executor interface {
	// Submit admits a new task and queues it for its first poll.
	// Returns ErrExecutorClosed after Shutdown.
	Submit(task *Task) error

	// Shutdown closes the queue, abandons tasks that can no longer run and
	// waits for workers to exit (up to ctx timeout).
	Shutdown(ctx context.Context) error

	// Stats returns current executor statistics
	Stats() ExecutorStats
}
