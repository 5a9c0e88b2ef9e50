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

// defaultWorkerPool implements WorkerPool
type defaultWorkerPool struct {
	workers int
	repoll  time.Duration
	queue   *Queue
	lc      Lifecycle
	logger  core.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	running atomic.Bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	live    sync.Map // task ID -> *Task

	completed atomic.Int64
	failed    atomic.Int64
	polls     atomic.Int64
	restarts  atomic.Int64
}

// WorkerPoolConfig configures a WorkerPool
type WorkerPoolConfig struct {
	Name    string // Queue name, used in logs and metrics
	Workers int    // Number of worker goroutines

	// RepollInterval is the pause between polls of a future that returned
	// Pending without taking its Waker. Zero yields the goroutine instead.
	RepollInterval time.Duration

	Lifecycle Lifecycle
}

// DefaultWorkerPoolConfig returns default worker pool configuration
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Name:           "blocking",
		Workers:        4,
		RepollInterval: time.Millisecond,
	}
}

// NewWorkerPool creates a WorkerPool. Call Start before submitting.
func NewWorkerPool(ctx context.Context, config WorkerPoolConfig) WorkerPool {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.RepollInterval < 0 {
		config.RepollInterval = 0
	}
	if config.Name == "" {
		config.Name = "blocking"
	}

	ctx, cancel := context.WithCancel(ctx)
	lc := config.Lifecycle.withDefaults("workerpool")

	return &defaultWorkerPool{
		workers: config.Workers,
		repoll:  config.RepollInterval,
		queue:   NewQueue(config.Name),
		lc:      lc,
		logger:  lc.Logger.WithFields(map[string]interface{}{"queue": config.Name}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start implements WorkerPool interface
func (wp *defaultWorkerPool) Start() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.running.Load() {
		return fmt.Errorf("worker pool is already running")
	}
	if wp.stopped {
		return fmt.Errorf("worker pool is stopped")
	}

	wp.running.Store(true)
	wp.wg.Add(wp.workers)
	for i := 0; i < wp.workers; i++ {
		go wp.supervise(i)
	}

	return nil
}

func (wp *defaultWorkerPool) supervise(id int) {
	defer wp.wg.Done()

	for !wp.work(id) {
		wp.restarts.Add(1)
		wp.logger.Warnf("blocking worker %d restarted", id)
	}
}

func (wp *defaultWorkerPool) work(id int) (exited bool) {
	var current *Task
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if v, ok := r.(*failfast.Violation); ok {
			panic(v)
		}
		wp.logger.Errorf("blocking worker %d panicked: %v", id, r)
		if current != nil {
			wp.retire(current, OutcomePanicked, &TaskPanicError{TaskID: current.ID(), Value: r, Stack: debug.Stack()})
		}
		exited = false
	}()

	for {
		t, err := wp.queue.PopFront(wp.ctx)
		if err != nil {
			if !errors.Is(err, ErrQueueUnavailable) && !errors.Is(err, context.Canceled) {
				wp.logger.Errorf("blocking worker %d: %v", id, err)
			}
			return true
		}
		wp.lc.Hooks.QueueLength(wp.queue.Name(), wp.queue.Len())

		current = t
		wp.runTask(t)
		current = nil
	}
}

// runTask drives t to completion on the calling goroutine.
func (wp *defaultWorkerPool) runTask(t *Task) {
	if !t.begin() {
		return
	}

	waker := newSignalWaker(t, wp.lc.Hooks)
	for {
		cx := future.NewContext(waker)
		start := time.Now()
		result, err := safePoll(t, cx)
		wp.polls.Add(1)
		wp.lc.Hooks.TaskPolled(t, result, time.Since(start), err)

		switch {
		case err != nil:
			wp.retire(t, outcomeOf(err), err)
			return
		case result.IsReady():
			wp.retire(t, OutcomeCompleted, nil)
			return
		}

		if !wp.pause(cx, waker) {
			wp.retire(t, OutcomeAbandoned, nil)
			return
		}
	}
}

// pause waits until the next poll is due. It returns false when the pool
// is stopping.
func (wp *defaultWorkerPool) pause(cx *future.Context, waker signalWaker) bool {
	switch {
	case cx.WakerTaken():
		select {
		case <-waker.ch:
			return true
		case <-wp.ctx.Done():
			return false
		}
	case wp.repoll > 0:
		timer := time.NewTimer(wp.repoll)
		defer timer.Stop()
		select {
		case <-timer.C:
			return true
		case <-wp.ctx.Done():
			return false
		}
	default:
		runtime.Gosched()
		return wp.ctx.Err() == nil
	}
}

func (wp *defaultWorkerPool) retire(t *Task, outcome Outcome, err error) {
	wp.lc.finish(t, outcome, err, func() {
		wp.live.Delete(t.ID())
		switch outcome {
		case OutcomeCompleted:
			wp.completed.Add(1)
		case OutcomeFailed, OutcomePanicked:
			wp.failed.Add(1)
		}
	})
}

// Stop implements WorkerPool interface
func (wp *defaultWorkerPool) Stop(ctx context.Context) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.stopped {
		return nil
	}
	wp.stopped = true
	wasRunning := wp.running.Swap(false)

	for _, t := range wp.queue.Close() {
		wp.retire(t, OutcomeAbandoned, nil)
	}
	wp.cancel()

	if wasRunning {
		done := make(chan struct{})
		go func() {
			wp.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("stop timeout: %w", ctx.Err())
		}
	}

	wp.live.Range(func(_, v any) bool {
		wp.retire(v.(*Task), OutcomeAbandoned, nil)
		return true
	})
	return nil
}

// Submit implements WorkerPool interface
func (wp *defaultWorkerPool) Submit(t *Task) error {
	if t == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if !t.WillBlock() {
		return fmt.Errorf("task %s is cooperative and must go to an Executor", t.Name())
	}
	if !wp.running.Load() {
		return fmt.Errorf("worker pool is not running")
	}
	if !t.enqueue() {
		return fmt.Errorf("task %s already submitted (state %s)", t.Name(), t.State())
	}

	wp.lc.admit(t)
	wp.live.Store(t.ID(), t)
	if err := wp.queue.PushBack(t); err != nil {
		wp.retire(t, OutcomeAbandoned, nil)
		return fmt.Errorf("worker pool is not running: %w", err)
	}
	wp.lc.Hooks.QueueLength(wp.queue.Name(), wp.queue.Len())
	return nil
}

// Workers implements WorkerPool interface
func (wp *defaultWorkerPool) Workers() int {
	return wp.workers
}

// IsRunning implements WorkerPool interface
func (wp *defaultWorkerPool) IsRunning() bool {
	return wp.running.Load()
}

// Stats implements WorkerPool interface
func (wp *defaultWorkerPool) Stats() ExecutorStats {
	return ExecutorStats{
		QueuedTasks:    wp.queue.Len(),
		LiveTasks:      wp.lc.Counter.Load(),
		ActiveWorkers:  wp.workers,
		CompletedTasks: wp.completed.Load(),
		FailedTasks:    wp.failed.Load(),
		Polls:          wp.polls.Load(),
		Restarts:       wp.restarts.Load(),
	}
}
