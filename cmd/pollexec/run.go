package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fluxorio/pollexec/pkg/config"
	"github.com/fluxorio/pollexec/pkg/core/concurrency"
	"github.com/fluxorio/pollexec/pkg/future"
	"github.com/fluxorio/pollexec/pkg/observability/prometheus"
	"github.com/fluxorio/pollexec/pkg/runtime"
	"github.com/fluxorio/pollexec/pkg/tracing"
	"github.com/spf13/cobra"
)

type runOptions struct {
	sleeps      []uint
	blocking    []uint
	metricsAddr string
	trace       bool
	timeout     time.Duration
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Spawn sleep tasks and wait for them",
		Example: `  pollexec run --sleep 0,50,10
  pollexec run --sleep 100 --blocking 200 --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := root.load()
			if err != nil {
				return err
			}
			if opts.metricsAddr != "" {
				file.Metrics.Enabled = true
				file.Metrics.Addr = opts.metricsAddr
			}
			if opts.trace {
				file.Tracing.Enabled = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.timeout)
				defer cancel()
			}
			return execute(ctx, cmd.OutOrStdout(), file, opts)
		},
	}

	cmd.Flags().UintSliceVar(&opts.sleeps, "sleep", []uint{0, 50, 10}, "Cooperative sleep tasks, in milliseconds")
	cmd.Flags().UintSliceVar(&opts.blocking, "blocking", nil, "Blocking tasks that hold their worker, in milliseconds")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Enable task tracing (tracing.* config selects the exporter)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Give up waiting after this long (0 waits forever)")

	return cmd
}

// execute runs one batch of tasks on a fresh runtime built from file.
func execute(ctx context.Context, out io.Writer, file config.File, opts *runOptions) error {
	logger := cliLogger()
	cfg := file.Runtime
	cfg.Logger = logger

	if file.Tracing.Enabled {
		if err := tracing.Init(file.Tracing); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(shutdownCtx); err != nil {
				logger.Warnf("tracing shutdown: %v", err)
			}
		}()
		cfg.Observers = append(cfg.Observers, tracing.NewTaskTracer(nil))
	}

	var serving sync.WaitGroup
	serveCtx, stopServing := context.WithCancel(context.Background())
	defer func() {
		stopServing()
		serving.Wait()
	}()
	if file.Metrics.Enabled {
		cfg.Observers = append(cfg.Observers, prometheus.GetMetrics())
		serving.Add(1)
		go func() {
			defer serving.Done()
			if err := prometheus.Serve(serveCtx, file.Metrics.Addr, file.Metrics.Path); err != nil {
				logger.Errorf("metrics server: %v", err)
			}
		}()
		logger.Infof("serving metrics on %s%s", file.Metrics.Addr, file.Metrics.Path)
	}

	var failures sync.Map
	cfg.ErrorHandler = func(t *concurrency.Task, err error) {
		failures.Store(t.Name(), err)
		logger.Errorf("task %s failed: %v", t.Name(), err)
	}

	rt := runtime.New(cfg)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.Stop(stopCtx)
	}()

	var mu sync.Mutex
	report := func(format string, args ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	start := time.Now()
	spawner := rt.Spawner()
	for _, ms := range opts.sleeps {
		name := fmt.Sprintf("sleep-%dms", ms)
		f := future.Then(future.SleepMillis(uint64(ms)), func() {
			report("%s done after %s\n", name, time.Since(start).Round(time.Millisecond))
		})
		if err := spawner.SpawnNamed(name, f); err != nil {
			return err
		}
	}
	for _, ms := range opts.blocking {
		name := fmt.Sprintf("blocking-%dms", ms)
		d := time.Duration(ms) * time.Millisecond
		f := future.Do(func() {
			time.Sleep(d)
			report("%s done after %s\n", name, time.Since(start).Round(time.Millisecond))
		})
		if err := spawner.SpawnBlockingNamed(name, f); err != nil {
			return err
		}
	}

	if err := rt.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for %d tasks: %w", rt.LiveTasks(), err)
	}

	stats := rt.Stats()
	report("%d tasks completed in %s (%d polls, %d failed)\n",
		stats.Cooperative.CompletedTasks+stats.Blocking.CompletedTasks,
		time.Since(start).Round(time.Millisecond),
		stats.Cooperative.Polls+stats.Blocking.Polls,
		stats.Cooperative.FailedTasks+stats.Blocking.FailedTasks,
	)

	var failed []error
	failures.Range(func(k, v any) bool {
		failed = append(failed, fmt.Errorf("%s: %w", k, v.(error)))
		return true
	})
	return errors.Join(failed...)
}
