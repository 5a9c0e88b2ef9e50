package concurrency

import (
	"context"
)

// WorkerPool runs blocking tasks. Each worker owns one task at a time and
// polls it repeatedly on its own goroutine until it finishes, so a task that
// monopolizes its goroutine never delays cooperative tasks.
type WorkerPool interface {
	// Start starts the worker pool
	// Initializes worker goroutines and begins processing tasks
	Start() error

	// Stop closes the pool, abandons tasks that can no longer run and waits
	// for workers to exit (up to ctx timeout)
	Stop(ctx context.Context) error

	// Submit admits a blocking task.
	// Returns an error if the task is not blocking or the pool is not running
	Submit(task *Task) error

	// Workers returns the number of worker goroutines
	Workers() int

	// IsRunning returns true if the worker pool is running
	IsRunning() bool

	// Stats returns current pool statistics
	Stats() ExecutorStats
}
