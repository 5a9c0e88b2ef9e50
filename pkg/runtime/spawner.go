package runtime

import (
	"fmt"

	"github.com/fluxorio/pollexec/pkg/core/concurrency"
	"github.com/fluxorio/pollexec/pkg/future"
)

// Spawner submits futures to its runtime. Every spawn returns as soon as the
// task is queued; the future is first polled by a worker, never by the
// caller.
type Spawner struct {
	rt *Runtime
}

// Spawn runs f on the cooperative workers.
func (s Spawner) Spawn(f future.Future) error {
	return s.rt.spawn("", f, false)
}

// SpawnNamed is Spawn with a task name for logs, metrics and traces.
func (s Spawner) SpawnNamed(name string, f future.Future) error {
	return s.rt.spawn(name, f, false)
}

// SpawnBlocking runs f on the blocking pool. Use it for futures whose poll
// may hold the goroutine for a long time.
func (s Spawner) SpawnBlocking(f future.Future) error {
	return s.rt.spawn("", f, true)
}

// SpawnBlockingNamed is SpawnBlocking with a task name.
func (s Spawner) SpawnBlockingNamed(name string, f future.Future) error {
	return s.rt.spawn(name, f, true)
}

func (r *Runtime) spawn(name string, f future.Future, blocking bool) error {
	if f == nil {
		return ErrNilFuture
	}
	if err := r.Start(); err != nil {
		if r.isShutdown() {
			return ErrSpawnAfterShutdown
		}
		return err
	}

	t := concurrency.NewTask(name, f, blocking)
	var err error
	if blocking {
		err = r.pool.Submit(t)
	} else {
		err = r.executor.Submit(t)
	}
	if err != nil {
		if r.isShutdown() {
			return fmt.Errorf("%w: %v", ErrSpawnAfterShutdown, err)
		}
		return err
	}
	return nil
}

func (r *Runtime) isShutdown() bool {
	return r.state.Load() >= runtimeStateStopping
}
