// Package runtime ties the cooperative executor, the blocking pool and the
// live-task counter together behind Spawn and Wait.
package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/fluxorio/pollexec/pkg/core"
	"github.com/fluxorio/pollexec/pkg/core/concurrency"
)

var (
	ErrRuntimeNotStarted = errors.New("runtime is not started")

	// ErrRuntimeClosed is returned by Start once Stop was called. A runtime
	// cannot be restarted.
	ErrRuntimeClosed = errors.New("runtime has been stopped")

	// ErrSpawnAfterShutdown is returned by every spawn once Stop was called.
	ErrSpawnAfterShutdown = errors.New("spawn after runtime shutdown")

	// ErrRuntimeStopped is returned by Wait when the runtime was stopped
	// before its tasks finished.
	ErrRuntimeStopped = errors.New("runtime stopped with live tasks")

	// ErrNilFuture is returned when spawning a nil future.
	ErrNilFuture = errors.New("future cannot be nil")
)

const (
	runtimeStateIdle uint32 = iota
	runtimeStateStarting
	runtimeStateStarted
	runtimeStateStopping
	runtimeStateStopped
)

var stateNames = map[uint32]string{
	runtimeStateIdle:     "Idle",
	runtimeStateStarting: "Starting",
	runtimeStateStarted:  "Started",
	runtimeStateStopping: "Stopping",
	runtimeStateStopped:  "Stopped",
}

// Status represents a snapshot of the runtime's state.
type Status struct {
	Name            string
	State           string
	Workers         int
	BlockingWorkers int
	LiveTasks       int64
}

// Stats aggregates executor and pool statistics.
type Stats struct {
	LiveTasks   int64
	Cooperative concurrency.ExecutorStats
	Blocking    concurrency.ExecutorStats
}

// Runtime owns one cooperative executor, one blocking worker pool and the
// live-task counter they share. The zero value is not usable; call New.
type Runtime struct {
	cfg    Config
	state  atomic.Uint32
	mu     sync.Mutex // serialises Start and Stop
	logger core.Logger

	counter   *concurrency.TaskCounter
	lifecycle concurrency.Lifecycle
	executor  concurrency.Executor
	pool      concurrency.WorkerPool

	stopCtx     context.Context
	stop        context.CancelFunc
	stoppedLive atomic.Bool
}

// New creates a runtime. Workers start on the first spawn or on Start.
func New(cfg Config) *Runtime {
	cfg = cfg.withDefaults()

	r := &Runtime{
		cfg:     cfg,
		logger:  cfg.Logger,
		counter: concurrency.NewTaskCounter(),
	}
	r.stopCtx, r.stop = context.WithCancel(context.Background())

	handler := cfg.ErrorHandler
	if handler == nil {
		handler = r.logTaskError
	}
	r.lifecycle = concurrency.Lifecycle{
		Counter: r.counter,
		Hooks:   concurrency.Combine(append([]concurrency.Hooks{concurrency.NewLoggingObserver(r.logger)}, cfg.Observers...)...),
		Logger:  r.logger,
		OnError: handler,
	}
	return r
}

func (r *Runtime) logTaskError(t *concurrency.Task, err error) {
	r.logger.Errorf("task %s (%s) failed: %v", t.Name(), t.ID(), err)
}

// Config returns the effective configuration.
func (r *Runtime) Config() Config { return r.cfg }

// Start launches the workers. It is idempotent while the runtime runs and
// returns ErrRuntimeClosed once the runtime has been stopped.
func (r *Runtime) Start() error {
	if r.state.Load() == runtimeStateStarted {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state.Load() {
	case runtimeStateStarted:
		return nil
	case runtimeStateStopping, runtimeStateStopped:
		return ErrRuntimeClosed
	}
	r.state.Store(runtimeStateStarting)

	r.executor = concurrency.NewExecutor(r.stopCtx, concurrency.ExecutorConfig{
		Name:           "cooperative",
		Workers:        r.cfg.Workers,
		RepollInterval: r.cfg.RepollInterval(),
		Lifecycle:      r.lifecycle,
	})
	r.pool = concurrency.NewWorkerPool(r.stopCtx, concurrency.WorkerPoolConfig{
		Name:           "blocking",
		Workers:        r.cfg.BlockingWorkers,
		RepollInterval: r.cfg.RepollInterval(),
		Lifecycle:      r.lifecycle,
	})
	if err := r.pool.Start(); err != nil {
		_ = r.executor.Shutdown(context.Background())
		r.state.Store(runtimeStateIdle)
		return err
	}

	r.state.Store(runtimeStateStarted)
	r.logger.Debugf("runtime %s started with %d workers and %d blocking workers",
		r.cfg.Name, r.cfg.Workers, r.cfg.BlockingWorkers)
	return nil
}

// Spawner returns the spawn handle for this runtime.
func (r *Runtime) Spawner() Spawner {
	return Spawner{rt: r}
}

// Wait blocks until every spawned task has finished. It returns nil
// immediately when nothing is live, ErrRuntimeStopped if the runtime is
// stopped first, or ctx.Err() if ctx is done first.
func (r *Runtime) Wait(ctx context.Context) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	release := context.AfterFunc(r.stopCtx, cancel)
	defer release()

	err := r.counter.Wait(waitCtx)
	if err != nil && ctx.Err() != nil {
		return err
	}
	if err != nil || r.stoppedLive.Load() {
		return ErrRuntimeStopped
	}
	return nil
}

// Stop shuts down the workers. Tasks still live are abandoned and any
// pending Wait returns ErrRuntimeStopped. Later spawns fail with
// ErrSpawnAfterShutdown.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state.Load() {
	case runtimeStateIdle:
		return ErrRuntimeNotStarted
	case runtimeStateStopping, runtimeStateStopped:
		return nil
	}
	r.state.Store(runtimeStateStopping)

	if live := r.counter.Load(); live > 0 {
		r.stoppedLive.Store(true)
		r.logger.Warnf("runtime %s stopping with %d live tasks", r.cfg.Name, live)
	}
	r.stop()

	err := errors.Join(r.executor.Shutdown(ctx), r.pool.Stop(ctx))

	r.state.Store(runtimeStateStopped)
	r.logger.Debugf("runtime %s stopped", r.cfg.Name)
	return err
}

// LiveTasks returns the number of spawned tasks that have not finished.
func (r *Runtime) LiveTasks() int64 {
	return r.counter.Load()
}

// Status returns a snapshot of the runtime's state.
func (r *Runtime) Status() Status {
	return Status{
		Name:            r.cfg.Name,
		State:           stateNames[r.state.Load()],
		Workers:         r.cfg.Workers,
		BlockingWorkers: r.cfg.BlockingWorkers,
		LiveTasks:       r.counter.Load(),
	}
}

// Stats returns executor and pool statistics. Both are zero before Start.
func (r *Runtime) Stats() Stats {
	s := Stats{LiveTasks: r.counter.Load()}
	if r.state.Load() < runtimeStateStarted {
		return s
	}
	s.Cooperative = r.executor.Stats()
	s.Blocking = r.pool.Stats()
	return s
}
