package concurrency

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

var (
	// ErrQueueClosed is returned when pushing to a closed queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueUnavailable is returned to consumers once the queue is closed.
	// It is fatal to the consuming worker.
	ErrQueueUnavailable = errors.New("queue is unavailable")
)

// Queue is a FIFO of pending tasks shared by producers (any goroutine) and
// consumer workers. Every access is mutually exclusive. Consumers park on an
// empty queue instead of spinning.
type Queue struct {
	name string

	mu     sync.Mutex
	items  *list.List
	closed bool

	notify chan struct{} // capacity 1, "something was pushed"
	done   chan struct{} // closed by Close
}

// NewQueue creates an empty queue.
func NewQueue(name string) *Queue {
	return &Queue{
		name:   name,
		items:  list.New(),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Name returns the queue name (used for metrics and logs).
func (q *Queue) Name() string { return q.name }

// PushBack appends t. It holds the lock only for the append.
func (q *Queue) PushBack(t *Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items.PushBack(t)
	q.mu.Unlock()

	q.signal()
	return nil
}

// PopFront removes and returns the oldest task, parking until one is
// available, the queue is closed (ErrQueueUnavailable) or ctx is done.
func (q *Queue) PopFront(ctx context.Context) (*Task, error) {
	for {
		t, ok, err := q.TryPopFront()
		if err != nil || ok {
			return t, err
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryPopFront is the non-blocking variant of PopFront.
// Returns (nil, false, nil) when the queue is empty.
func (q *Queue) TryPopFront() (*Task, bool, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, false, ErrQueueUnavailable
	}
	e := q.items.Front()
	if e == nil {
		q.mu.Unlock()
		return nil, false, nil
	}
	q.items.Remove(e)
	more := q.items.Len() > 0
	q.mu.Unlock()

	// Pass the baton so another parked consumer picks up the rest.
	if more {
		q.signal()
	}
	return e.Value.(*Task), true, nil
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close closes the queue, wakes every parked consumer and returns the tasks
// that were still queued. Calls after the first return nil.
func (q *Queue) Close() []*Task {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	drained := make([]*Task, 0, q.items.Len())
	for e := q.items.Front(); e != nil; e = e.Next() {
		drained = append(drained, e.Value.(*Task))
	}
	q.items.Init()
	q.mu.Unlock()

	close(q.done)
	return drained
}

// IsClosed returns true if the queue is closed
func (q *Queue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
