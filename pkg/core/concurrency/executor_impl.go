package concurrency

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxorio/pollexec/pkg/core"
	"github.com/fluxorio/pollexec/pkg/core/failfast"
	"github.com/fluxorio/pollexec/pkg/future"
)

// defaultExecutor polls cooperative tasks from one shared FIFO queue on a
// fixed number of supervised worker goroutines.
type defaultExecutor struct {
	queue   *Queue
	workers int
	repoll  time.Duration
	lc      Lifecycle
	logger  core.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	live   sync.Map // task ID -> *Task

	completed atomic.Int64
	failed    atomic.Int64
	polls     atomic.Int64
	restarts  atomic.Int64
}

// ExecutorConfig configures an Executor
type ExecutorConfig struct {
	Name    string // Queue name, used in logs and metrics
	Workers int    // Number of worker goroutines

	// RepollInterval is how long a task whose future returned Pending
	// without taking its Waker is parked before the next poll. Zero pushes
	// it straight back to the tail of the queue.
	RepollInterval time.Duration

	Lifecycle Lifecycle
}

// DefaultExecutorConfig returns default executor configuration
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Name:           "cooperative",
		Workers:        runtime.GOMAXPROCS(0),
		RepollInterval: time.Millisecond,
	}
}

// NewExecutor creates an Executor and starts its workers.
func NewExecutor(ctx context.Context, config ExecutorConfig) Executor {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.RepollInterval < 0 {
		config.RepollInterval = 0
	}
	if config.Name == "" {
		config.Name = "cooperative"
	}

	ctx, cancel := context.WithCancel(ctx)
	lc := config.Lifecycle.withDefaults("executor")

	exec := &defaultExecutor{
		queue:   NewQueue(config.Name),
		workers: config.Workers,
		repoll:  config.RepollInterval,
		lc:      lc,
		logger:  lc.Logger.WithFields(map[string]interface{}{"queue": config.Name}),
		ctx:     ctx,
		cancel:  cancel,
	}

	exec.startWorkers()

	return exec
}

func (e *defaultExecutor) startWorkers() {
	e.wg.Add(e.workers)
	for i := 0; i < e.workers; i++ {
		go e.supervise(i)
	}
}

// supervise keeps worker id alive until the queue closes, restarting it
// after a panic that escaped task polling.
func (e *defaultExecutor) supervise(id int) {
	defer e.wg.Done()

	e.logger.Debugf("worker %d started", id)
	for !e.work(id) {
		e.restarts.Add(1)
		e.logger.Warnf("worker %d restarted", id)
	}
	e.logger.Debugf("worker %d stopped", id)
}

// work runs the worker loop. It returns true on orderly exit and false after
// recovering a panic.
func (e *defaultExecutor) work(id int) (exited bool) {
	var current *Task
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if v, ok := r.(*failfast.Violation); ok {
			panic(v)
		}
		e.logger.Errorf("worker %d panicked: %v", id, r)
		if current != nil {
			e.retire(current, OutcomePanicked, &TaskPanicError{TaskID: current.ID(), Value: r, Stack: debug.Stack()})
		}
		exited = false
	}()

	for {
		t, err := e.queue.PopFront(e.ctx)
		if err != nil {
			if !errors.Is(err, ErrQueueUnavailable) && !errors.Is(err, context.Canceled) {
				e.logger.Errorf("worker %d: %v", id, err)
			}
			return true
		}
		e.lc.Hooks.QueueLength(e.queue.Name(), e.queue.Len())

		current = t
		e.runTask(t)
		current = nil
	}
}

// runTask polls t once and decides where it goes next.
func (e *defaultExecutor) runTask(t *Task) {
	if !t.begin() {
		// Retired while it sat in the queue.
		return
	}

	cx := future.NewContext(taskWaker{task: t, sched: e})
	start := time.Now()
	result, err := safePoll(t, cx)
	elapsed := time.Since(start)
	e.polls.Add(1)
	e.lc.Hooks.TaskPolled(t, result, elapsed, err)

	switch {
	case err != nil:
		e.retire(t, outcomeOf(err), err)
	case result.IsReady():
		e.retire(t, OutcomeCompleted, nil)
	case cx.WakerTaken():
		if !t.park() {
			e.schedule(t)
		}
	case e.repoll == 0:
		t.requeue()
		e.schedule(t)
	default:
		if t.park() {
			time.AfterFunc(e.repoll, taskWaker{task: t, sched: e}.Wake)
		} else {
			e.schedule(t)
		}
	}
}

// schedule pushes a task that is already in StateQueued.
func (e *defaultExecutor) schedule(t *Task) {
	if err := e.queue.PushBack(t); err != nil {
		e.retire(t, OutcomeAbandoned, nil)
		return
	}
	e.lc.Hooks.QueueLength(e.queue.Name(), e.queue.Len())
}

func (e *defaultExecutor) woken(t *Task, enqueued bool) {
	e.lc.Hooks.TaskWoken(t, enqueued)
}

func (e *defaultExecutor) retire(t *Task, outcome Outcome, err error) {
	e.lc.finish(t, outcome, err, func() {
		e.live.Delete(t.ID())
		switch outcome {
		case OutcomeCompleted:
			e.completed.Add(1)
		case OutcomeFailed, OutcomePanicked:
			e.failed.Add(1)
		}
	})
}

// Submit implements Executor interface
func (e *defaultExecutor) Submit(t *Task) error {
	if t == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if t.WillBlock() {
		return fmt.Errorf("task %s is blocking and must go to a WorkerPool", t.Name())
	}
	if e.closed.Load() {
		return ErrExecutorClosed
	}
	if !t.enqueue() {
		return fmt.Errorf("task %s already submitted (state %s)", t.Name(), t.State())
	}

	e.lc.admit(t)
	e.live.Store(t.ID(), t)
	if err := e.queue.PushBack(t); err != nil {
		e.retire(t, OutcomeAbandoned, nil)
		return fmt.Errorf("%w: %v", ErrExecutorClosed, err)
	}
	e.lc.Hooks.QueueLength(e.queue.Name(), e.queue.Len())
	return nil
}

// Shutdown implements Executor interface
func (e *defaultExecutor) Shutdown(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	for _, t := range e.queue.Close() {
		e.retire(t, OutcomeAbandoned, nil)
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}

	// Parked tasks can never be polled again.
	e.live.Range(func(_, v any) bool {
		e.retire(v.(*Task), OutcomeAbandoned, nil)
		return true
	})
	return nil
}

// Stats implements Executor interface
func (e *defaultExecutor) Stats() ExecutorStats {
	return ExecutorStats{
		QueuedTasks:    e.queue.Len(),
		LiveTasks:      e.lc.Counter.Load(),
		ActiveWorkers:  e.workers,
		CompletedTasks: e.completed.Load(),
		FailedTasks:    e.failed.Load(),
		Polls:          e.polls.Load(),
		Restarts:       e.restarts.Load(),
	}
}
