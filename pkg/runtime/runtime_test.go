package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fluxorio/pollexec/pkg/core"
	"github.com/fluxorio/pollexec/pkg/core/concurrency"
	"github.com/fluxorio/pollexec/pkg/future"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pollRecorder struct {
	concurrency.NopHooks
	mu       sync.Mutex
	pending  map[string]int
	finished map[string]time.Time
}

func newPollRecorder() *pollRecorder {
	return &pollRecorder{pending: map[string]int{}, finished: map[string]time.Time{}}
}

func (p *pollRecorder) TaskPolled(t *concurrency.Task, result future.Poll, _ time.Duration, _ error) {
	if result.IsPending() {
		p.mu.Lock()
		p.pending[t.Name()]++
		p.mu.Unlock()
	}
}

func (p *pollRecorder) TaskFinished(t *concurrency.Task, _ concurrency.Outcome, _ error) {
	p.mu.Lock()
	p.finished[t.Name()] = time.Now()
	p.mu.Unlock()
}

func (p *pollRecorder) pendingPolls(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending[name]
}

func (p *pollRecorder) finishedAt(name string) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished[name]
}

func newTestRuntime(t *testing.T, mutate func(*Config)) *Runtime {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Logger = core.NewNopLogger()
	if mutate != nil {
		mutate(&cfg)
	}
	rt := New(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = rt.Stop(ctx)
	})
	return rt
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRuntime_ImmediateTasks(t *testing.T) {
	for _, n := range []int{0, 1, 100} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			rt := newTestRuntime(t, nil)
			var ran atomic.Int32
			for i := 0; i < n; i++ {
				require.NoError(t, rt.Spawner().Spawn(future.Do(func() { ran.Add(1) })))
			}

			require.NoError(t, rt.Wait(waitCtx(t)))
			assert.Equal(t, int32(n), ran.Load())
			assert.Zero(t, rt.LiveTasks())
		})
	}
}

func TestRuntime_SleepScenario(t *testing.T) {
	rec := newPollRecorder()
	rt := newTestRuntime(t, func(c *Config) {
		c.Workers = 1
		c.Observers = []concurrency.Hooks{rec}
	})

	start := time.Now()
	for _, ms := range []uint64{0, 50, 10} {
		require.NoError(t, rt.Spawner().SpawnNamed(fmt.Sprintf("sleep-%d", ms), future.SleepMillis(ms)))
	}
	require.NoError(t, rt.Wait(waitCtx(t)))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Zero(t, rec.pendingPolls("sleep-0"), "zero sleep must complete on its first poll")
	assert.True(t, rec.finishedAt("sleep-10").Before(rec.finishedAt("sleep-50")))
}

func TestRuntime_WaitWithoutTasks(t *testing.T) {
	rt := newTestRuntime(t, nil)

	done := make(chan error, 1)
	go func() { done <- rt.Wait(context.Background()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait() with no tasks did not return")
	}
	assert.Equal(t, "Idle", rt.Status().State)
}

func TestRuntime_BlockingDoesNotStarveCooperative(t *testing.T) {
	rec := newPollRecorder()
	rt := newTestRuntime(t, func(c *Config) {
		c.Workers = 1
		c.BlockingWorkers = 1
		c.Observers = []concurrency.Hooks{rec}
	})

	blocker := future.Do(func() { time.Sleep(200 * time.Millisecond) })
	require.NoError(t, rt.Spawner().SpawnBlockingNamed("blocker", blocker))
	require.NoError(t, rt.Spawner().SpawnNamed("quick", future.SleepMillis(10)))

	require.NoError(t, rt.Wait(waitCtx(t)))
	assert.True(t, rec.finishedAt("quick").Before(rec.finishedAt("blocker")),
		"cooperative task should finish while the blocking task holds its worker")
	stats := rt.Stats()
	assert.Equal(t, int64(1), stats.Blocking.CompletedTasks)
	assert.Equal(t, int64(1), stats.Cooperative.CompletedTasks)
}

func TestRuntime_PanicDecrementsCounter(t *testing.T) {
	var handled atomic.Value
	rt := newTestRuntime(t, func(c *Config) {
		c.ErrorHandler = func(_ *concurrency.Task, err error) { handled.Store(err) }
	})

	require.NoError(t, rt.Spawner().Spawn(future.Func(func(*future.Context) (future.Poll, error) {
		panic("task exploded")
	})))
	var ran atomic.Bool
	require.NoError(t, rt.Spawner().Spawn(future.Do(func() { ran.Store(true) })))

	require.NoError(t, rt.Wait(waitCtx(t)))
	assert.True(t, ran.Load())
	var pe *concurrency.TaskPanicError
	err, _ := handled.Load().(error)
	require.True(t, errors.As(err, &pe), "handled error = %v", err)
	assert.Equal(t, "task exploded", pe.Value)
}

type panickingObserver struct {
	concurrency.NopHooks
}

func (panickingObserver) TaskSpawned(*concurrency.Task) { panic("spawn observer bug") }

func (panickingObserver) TaskFinished(*concurrency.Task, concurrency.Outcome, error) {
	panic("finish observer bug")
}

func TestRuntime_PanickingCallbacksDoNotLeakTasks(t *testing.T) {
	rt := newTestRuntime(t, func(c *Config) {
		c.Workers = 1
		c.Observers = []concurrency.Hooks{panickingObserver{}}
		c.ErrorHandler = func(*concurrency.Task, error) { panic("handler bug") }
	})

	require.NoError(t, rt.Spawner().Spawn(future.Func(func(*future.Context) (future.Poll, error) {
		return future.Pending, errors.New("task failed")
	})))
	var ran atomic.Bool
	require.NoError(t, rt.Spawner().Spawn(future.Do(func() { ran.Store(true) })))
	require.NoError(t, rt.Spawner().SpawnBlocking(future.Do(func() {})))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rt.Wait(ctx))
	assert.True(t, ran.Load())
	assert.Zero(t, rt.LiveTasks())

	stats := rt.Stats()
	assert.Equal(t, int64(1), stats.Cooperative.FailedTasks)
	assert.Equal(t, int64(1), stats.Cooperative.CompletedTasks)
	assert.Equal(t, int64(1), stats.Blocking.CompletedTasks)
	assert.Zero(t, stats.Cooperative.Restarts)
}

func TestRuntime_ClockFailureReachesErrorHandler(t *testing.T) {
	var handled atomic.Value
	rt := newTestRuntime(t, func(c *Config) {
		c.ErrorHandler = func(_ *concurrency.Task, err error) { handled.Store(err) }
	})

	broken := future.ClockFunc(func() (time.Time, error) {
		return time.Time{}, errors.New("no time source")
	})
	require.NoError(t, rt.Spawner().Spawn(future.NewSleepWithClock(time.Second, broken)))

	require.NoError(t, rt.Wait(waitCtx(t)))
	err, _ := handled.Load().(error)
	assert.ErrorIs(t, err, future.ErrClockUnavailable)
}

func TestRuntime_SignalTask(t *testing.T) {
	rt := newTestRuntime(t, nil)

	var sig future.Signal
	require.NoError(t, rt.Spawner().Spawn(sig.Await()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rt.Wait(ctx), context.DeadlineExceeded)
	assert.Equal(t, int64(1), rt.LiveTasks())

	sig.Fire()
	require.NoError(t, rt.Wait(waitCtx(t)))
}

func TestRuntime_SpawnAfterStop(t *testing.T) {
	rt := newTestRuntime(t, nil)
	require.NoError(t, rt.Start())
	require.NoError(t, rt.Stop(context.Background()))

	assert.ErrorIs(t, rt.Spawner().Spawn(future.SleepMillis(1)), ErrSpawnAfterShutdown)
	assert.ErrorIs(t, rt.Spawner().SpawnBlocking(future.SleepMillis(1)), ErrSpawnAfterShutdown)
	assert.Zero(t, rt.LiveTasks())
	assert.Equal(t, "Stopped", rt.Status().State)
}

func TestRuntime_StopReleasesWait(t *testing.T) {
	rt := newTestRuntime(t, nil)

	var never future.Signal
	require.NoError(t, rt.Spawner().Spawn(never.Await()))

	waited := make(chan error, 1)
	go func() { waited <- rt.Wait(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, rt.Stop(context.Background()))
	select {
	case err := <-waited:
		assert.ErrorIs(t, err, ErrRuntimeStopped)
	case <-time.After(time.Second):
		t.Fatal("Wait() not released by Stop")
	}
	assert.Zero(t, rt.LiveTasks())
	assert.ErrorIs(t, rt.Wait(context.Background()), ErrRuntimeStopped)
}

func TestRuntime_Lifecycle(t *testing.T) {
	rt := newTestRuntime(t, nil)

	assert.ErrorIs(t, rt.Stop(context.Background()), ErrRuntimeNotStarted)
	require.NoError(t, rt.Start())
	require.NoError(t, rt.Start(), "Start is idempotent")
	assert.Equal(t, "Started", rt.Status().State)

	require.NoError(t, rt.Stop(context.Background()))
	require.NoError(t, rt.Stop(context.Background()), "Stop is idempotent")
	assert.ErrorIs(t, rt.Start(), ErrRuntimeClosed)
}

func TestRuntime_SpawnStartsLazily(t *testing.T) {
	rt := newTestRuntime(t, nil)
	assert.Equal(t, "Idle", rt.Status().State)

	require.NoError(t, rt.Spawner().Spawn(future.SleepMillis(0)))
	assert.Equal(t, "Started", rt.Status().State)
	require.NoError(t, rt.Wait(waitCtx(t)))
}

func TestRuntime_SpawnNil(t *testing.T) {
	rt := newTestRuntime(t, nil)
	assert.ErrorIs(t, rt.Spawner().Spawn(nil), ErrNilFuture)
	assert.ErrorIs(t, rt.Spawner().SpawnBlocking(nil), ErrNilFuture)
}

func TestDefault(t *testing.T) {
	assert.Same(t, Default(), Default())

	var ran atomic.Bool
	require.NoError(t, Spawn(future.Do(func() { ran.Store(true) })))
	require.NoError(t, SpawnBlocking(future.SleepMillis(1)))
	require.NoError(t, Wait(waitCtx(t)))
	assert.True(t, ran.Load())
}
