package runtime

import (
	"errors"
	"fmt"
	goruntime "runtime"
	"time"

	"github.com/fluxorio/pollexec/pkg/core"
	"github.com/fluxorio/pollexec/pkg/core/concurrency"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid runtime config")

const (
	defaultRepollIntervalMs = 1

	// RequeueImmediately is the RepollIntervalMs value that disables the
	// repoll delay.
	RequeueImmediately = -1
)

// Config configures a Runtime. The serialisable fields can be loaded from
// YAML or JSON through pkg/config.
type Config struct {
	// Name labels logs and metrics.
	Name string `yaml:"name" json:"name"`

	// Workers is the number of cooperative worker goroutines.
	// Zero means GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers"`

	// BlockingWorkers is the size of the dedicated pool for blocking tasks.
	// Zero means 4.
	BlockingWorkers int `yaml:"blocking_workers" json:"blocking_workers"`

	// RepollIntervalMs is how long a task that returned Pending without
	// taking its Waker waits before its next poll. Zero means the default
	// of 1ms. RequeueImmediately (-1) pushes such a task straight back to
	// the tail of the queue, which keeps a worker busy while it waits.
	RepollIntervalMs int `yaml:"repoll_interval_ms" json:"repoll_interval_ms"`

	Logger       core.Logger                             `yaml:"-" json:"-"`
	Observers    []concurrency.Hooks                     `yaml:"-" json:"-"`
	ErrorHandler func(task *concurrency.Task, err error) `yaml:"-" json:"-"`
}

// DefaultConfig returns the configuration used by Default().
func DefaultConfig() Config {
	return Config{
		Name:             "pollexec",
		Workers:          goruntime.GOMAXPROCS(0),
		BlockingWorkers:  4,
		RepollIntervalMs: defaultRepollIntervalMs,
	}
}

// RepollInterval returns the effective repoll delay. It is zero for
// RequeueImmediately.
func (c Config) RepollInterval() time.Duration {
	switch {
	case c.RepollIntervalMs < 0:
		return 0
	case c.RepollIntervalMs == 0:
		return defaultRepollIntervalMs * time.Millisecond
	}
	return time.Duration(c.RepollIntervalMs) * time.Millisecond
}

// Validate checks the serialisable fields.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.BlockingWorkers < 0 {
		return fmt.Errorf("%w: blocking_workers must be >= 0, got %d", ErrInvalidConfig, c.BlockingWorkers)
	}
	if c.RepollIntervalMs < RequeueImmediately {
		return fmt.Errorf("%w: repoll_interval_ms must be >= %d, got %d", ErrInvalidConfig, RequeueImmediately, c.RepollIntervalMs)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "pollexec"
	}
	if c.Workers <= 0 {
		c.Workers = goruntime.GOMAXPROCS(0)
	}
	if c.BlockingWorkers <= 0 {
		c.BlockingWorkers = 4
	}
	if c.RepollIntervalMs == 0 {
		c.RepollIntervalMs = defaultRepollIntervalMs
	} else if c.RepollIntervalMs < 0 {
		c.RepollIntervalMs = RequeueImmediately
	}
	if c.Logger == nil {
		c.Logger = core.NewDefaultLogger().WithFields(map[string]interface{}{"runtime": c.Name})
	}
	return c
}
