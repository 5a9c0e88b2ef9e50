package concurrency

import (
	"time"

	"github.com/fluxorio/pollexec/pkg/core"
	"github.com/fluxorio/pollexec/pkg/future"
)

// Outcome describes how a task left the scheduler.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomePanicked  Outcome = "panicked"
	// OutcomeAbandoned: dropped because its executor shut down.
	OutcomeAbandoned Outcome = "abandoned"
)

// Hooks observes task lifecycle events. Implementations must be safe for
// concurrent use and must not block: they run on worker goroutines.
type Hooks interface {
	TaskSpawned(t *Task)
	TaskPolled(t *Task, result future.Poll, elapsed time.Duration, err error)
	TaskWoken(t *Task, enqueued bool)
	TaskFinished(t *Task, outcome Outcome, err error)
	QueueLength(queue string, n int)
}

// NopHooks ignores every event. Embed it to implement a subset of Hooks.
type NopHooks struct{}

func (NopHooks) TaskSpawned(*Task)                                   {}
func (NopHooks) TaskPolled(*Task, future.Poll, time.Duration, error) {}
func (NopHooks) TaskWoken(*Task, bool)                               {}
func (NopHooks) TaskFinished(*Task, Outcome, error)                  {}
func (NopHooks) QueueLength(string, int)                             {}

// MultiHooks fans every event out to each member in order.
type MultiHooks []Hooks

// Combine returns a single Hooks for hs, skipping nils.
func Combine(hs ...Hooks) Hooks {
	out := make(MultiHooks, 0, len(hs))
	for _, h := range hs {
		if h != nil {
			out = append(out, h)
		}
	}
	switch len(out) {
	case 0:
		return NopHooks{}
	case 1:
		return out[0]
	}
	return out
}

func (m MultiHooks) TaskSpawned(t *Task) {
	for _, h := range m {
		h.TaskSpawned(t)
	}
}

func (m MultiHooks) TaskPolled(t *Task, result future.Poll, elapsed time.Duration, err error) {
	for _, h := range m {
		h.TaskPolled(t, result, elapsed, err)
	}
}

func (m MultiHooks) TaskWoken(t *Task, enqueued bool) {
	for _, h := range m {
		h.TaskWoken(t, enqueued)
	}
}

func (m MultiHooks) TaskFinished(t *Task, outcome Outcome, err error) {
	for _, h := range m {
		h.TaskFinished(t, outcome, err)
	}
}

func (m MultiHooks) QueueLength(queue string, n int) {
	for _, h := range m {
		h.QueueLength(queue, n)
	}
}

// LoggingObserver logs task lifecycle events at debug level. Failures are
// reported separately through the runtime's error handler.
type LoggingObserver struct {
	NopHooks
	logger core.Logger
}

// NewLoggingObserver creates a new logging observer.
func NewLoggingObserver(logger core.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) TaskSpawned(t *Task) {
	o.logger.Debugf("task %s (%s) spawned as %s", t.Name(), t.ID(), t.Kind())
}

func (o *LoggingObserver) TaskPolled(t *Task, result future.Poll, elapsed time.Duration, err error) {
	o.logger.Debugf("task %s poll #%d: %s in %s", t.Name(), t.Polls(), result, elapsed)
}

func (o *LoggingObserver) TaskFinished(t *Task, outcome Outcome, err error) {
	if err != nil {
		o.logger.Debugf("task %s %s after %d polls: %v", t.Name(), outcome, t.Polls(), err)
		return
	}
	o.logger.Debugf("task %s %s after %d polls", t.Name(), outcome, t.Polls())
}
