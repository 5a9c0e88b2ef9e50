package runtime

import (
	"context"
	"sync"

	"github.com/fluxorio/pollexec/pkg/future"
)

var (
	defaultOnce    sync.Once
	defaultRuntime *Runtime
)

// Default returns the process-wide runtime, created with DefaultConfig on
// first use. Its workers start on the first spawn.
func Default() *Runtime {
	defaultOnce.Do(func() {
		defaultRuntime = New(DefaultConfig())
	})
	return defaultRuntime
}

// Spawn runs f on the default runtime.
func Spawn(f future.Future) error {
	return Default().Spawner().Spawn(f)
}

// SpawnBlocking runs f on the default runtime's blocking pool.
func SpawnBlocking(f future.Future) error {
	return Default().Spawner().SpawnBlocking(f)
}

// Wait blocks until every task spawned on the default runtime has finished.
func Wait(ctx context.Context) error {
	return Default().Wait(ctx)
}
