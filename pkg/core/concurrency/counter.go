package concurrency

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fluxorio/pollexec/pkg/core/failfast"
)

// TaskCounter tracks tasks that were spawned but have not finished.
//
// Add and Done are single atomic operations. Wait parks the caller on a
// channel that is closed whenever the count drops to zero. The zero value is
// ready to use.
type TaskCounter struct {
	n atomic.Int64

	mu   sync.Mutex
	zero chan struct{}
}

// NewTaskCounter returns a counter at zero.
func NewTaskCounter() *TaskCounter {
	return &TaskCounter{zero: make(chan struct{})}
}

// Add records one spawned task.
func (c *TaskCounter) Add() {
	c.n.Add(1)
}

// Done records one finished task. The count must never go negative.
func (c *TaskCounter) Done() {
	n := c.n.Add(-1)
	failfast.If(n >= 0, "live task counter went negative (%d)", n)
	if n == 0 {
		c.mu.Lock()
		if c.zero != nil {
			close(c.zero)
		}
		c.zero = make(chan struct{})
		c.mu.Unlock()
	}
}

// Load returns the current count.
func (c *TaskCounter) Load() int64 {
	return c.n.Load()
}

// Wait blocks until the count is observed at zero or ctx is done.
func (c *TaskCounter) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.n.Load() == 0 {
			c.mu.Unlock()
			return nil
		}
		if c.zero == nil {
			c.zero = make(chan struct{})
		}
		zero := c.zero
		c.mu.Unlock()

		select {
		case <-zero:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
