package concurrency

import "github.com/fluxorio/pollexec/pkg/future"

// scheduler re-inserts tasks that a Waker made runnable.
type scheduler interface {
	schedule(t *Task)
	woken(t *Task, enqueued bool)
}

// taskWaker is the Waker handed to cooperative futures. It is a small value
// holding the task and its scheduler, so copies share the same target.
type taskWaker struct {
	task  *Task
	sched scheduler
}

var _ future.Waker = taskWaker{}

// Wake re-inserts the task at most once until its next poll.
func (w taskWaker) Wake() {
	enqueued := w.task.wake()
	w.sched.woken(w.task, enqueued)
	if enqueued {
		w.sched.schedule(w.task)
	}
}

// signalWaker is the Waker handed to blocking futures: it releases the
// blocking worker parked on ch. Extra wakes are coalesced by the buffer.
type signalWaker struct {
	task  *Task
	ch    chan struct{}
	hooks Hooks
}

func newSignalWaker(t *Task, hooks Hooks) signalWaker {
	return signalWaker{task: t, ch: make(chan struct{}, 1), hooks: hooks}
}

func (w signalWaker) Wake() {
	select {
	case w.ch <- struct{}{}:
		w.hooks.TaskWoken(w.task, true)
	default:
		w.hooks.TaskWoken(w.task, false)
	}
}
