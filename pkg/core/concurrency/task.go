package concurrency

import (
	"sync/atomic"
	"time"

	"github.com/fluxorio/pollexec/pkg/core/failfast"
	"github.com/fluxorio/pollexec/pkg/future"
	"github.com/google/uuid"
)

// State is the scheduling state of a Task.
type State uint32

const (
	// StateIdle: not queued, waiting for its Waker.
	StateIdle State = iota
	// StateQueued: sitting in exactly one queue.
	StateQueued
	// StateRunning: being polled by a worker.
	StateRunning
	// StateNotified: woken while being polled; must be re-queued afterwards.
	StateNotified
	// StateDone: finished; never scheduled again.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateNotified:
		return "notified"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Task is a schedulable unit of work: a future plus its blocking
// classification. A Task is owned by one queue or one worker at a time.
type Task struct {
	id       string
	name     string
	future   future.Future
	blocking bool
	spawned  time.Time

	state atomic.Uint32
	polls atomic.Uint64
}

// NewTask wraps f. No polling happens here. f must not be nil.
func NewTask(name string, f future.Future, blocking bool) *Task {
	failfast.NotNil(f, "future")

	id := uuid.NewString()
	if name == "" {
		name = "task-" + id[:8]
	}
	return &Task{
		id:       id,
		name:     name,
		future:   f,
		blocking: blocking,
		spawned:  time.Now(),
	}
}

// ID returns the unique task identifier.
func (t *Task) ID() string { return t.id }

// Name returns a human-readable name for the task (for logging/debugging)
func (t *Task) Name() string { return t.name }

// WillBlock reports whether the task may monopolize the goroutine polling it.
func (t *Task) WillBlock() bool { return t.blocking }

// SpawnedAt returns the creation time.
func (t *Task) SpawnedAt() time.Time { return t.spawned }

// Polls returns how many times the task has been polled.
func (t *Task) Polls() uint64 { return t.polls.Load() }

// State returns the current scheduling state.
func (t *Task) State() State { return State(t.state.Load()) }

// Kind returns "blocking" or "cooperative".
func (t *Task) Kind() string {
	if t.blocking {
		return "blocking"
	}
	return "cooperative"
}

// Poll delegates to the wrapped future.
func (t *Task) Poll(cx *future.Context) (future.Poll, error) {
	t.polls.Add(1)
	return t.future.Poll(cx)
}

func (t *Task) cas(from, to State) bool {
	return t.state.CompareAndSwap(uint32(from), uint32(to))
}

// enqueue moves an idle task to Queued. The caller owns the push.
func (t *Task) enqueue() bool {
	return t.cas(StateIdle, StateQueued)
}

// begin claims a queued task for polling.
func (t *Task) begin() bool {
	return t.cas(StateQueued, StateRunning)
}

// wake records a wake-up. It returns true when the caller must push the task
// to its queue; every other case is coalesced.
func (t *Task) wake() bool {
	for {
		switch s := t.State(); s {
		case StateIdle:
			if t.cas(StateIdle, StateQueued) {
				return true
			}
		case StateRunning:
			if t.cas(StateRunning, StateNotified) {
				return false
			}
		default:
			return false
		}
	}
}

// park releases a running task to Idle. It returns false if the task was
// woken during the poll, in which case it is now Queued and the caller must
// push it.
func (t *Task) park() bool {
	if t.cas(StateRunning, StateIdle) {
		return true
	}
	failfast.If(t.cas(StateNotified, StateQueued), "park: task %s in state %s", t.id, t.State())
	return false
}

// requeue moves a running (or notified) task straight back to Queued.
func (t *Task) requeue() {
	if t.cas(StateRunning, StateQueued) {
		return
	}
	failfast.If(t.cas(StateNotified, StateQueued), "requeue: task %s in state %s", t.id, t.State())
}

// finish marks the task Done. It returns false if it already was.
func (t *Task) finish() bool {
	for {
		s := t.State()
		if s == StateDone {
			return false
		}
		if t.cas(s, StateDone) {
			return true
		}
	}
}
