package concurrency

import (
	"github.com/fluxorio/pollexec/pkg/core"
	"github.com/fluxorio/pollexec/pkg/core/failfast"
)

// Lifecycle is the bookkeeping shared by every executor that runs tasks for
// one runtime: the live-task counter, observers, logger and error handler.
type Lifecycle struct {
	Counter *TaskCounter
	Hooks   Hooks
	Logger  core.Logger
	// OnError receives every task that finishes with an error or a panic.
	OnError func(t *Task, err error)
}

func (l Lifecycle) withDefaults(component string) Lifecycle {
	if l.Counter == nil {
		l.Counter = NewTaskCounter()
	}
	if l.Hooks == nil {
		l.Hooks = NopHooks{}
	}
	if l.Logger == nil {
		l.Logger = newComponentLogger(component)
	}
	return l
}

// admit records a newly submitted task.
func (l Lifecycle) admit(t *Task) {
	l.Counter.Add()
	l.guard("TaskSpawned", t, func() { l.Hooks.TaskSpawned(t) })
}

// finish retires t exactly once. settle runs first, for the caller's own
// bookkeeping. The counter is decremented last so a returning Wait implies
// every observer has seen the task.
func (l Lifecycle) finish(t *Task, outcome Outcome, err error, settle func()) bool {
	if !t.finish() {
		return false
	}
	defer l.Counter.Done()

	if settle != nil {
		settle()
	}

	if err != nil && l.OnError != nil {
		l.guard("error handler", t, func() { l.OnError(t, err) })
	}
	l.guard("TaskFinished", t, func() { l.Hooks.TaskFinished(t, outcome, err) })
	return true
}

// guard runs a user callback for t. A panic in it is logged and dropped so
// the task's bookkeeping still completes.
func (l Lifecycle) guard(event string, t *Task, fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if v, ok := r.(*failfast.Violation); ok {
			panic(v)
		}
		if l.Logger != nil {
			l.Logger.Errorf("%s for task %s (%s) panicked: %v", event, t.Name(), t.ID(), r)
		}
	}()
	fn()
}
