package prometheus

import (
	"sync"
	"time"

	"github.com/fluxorio/pollexec/pkg/core/concurrency"
	"github.com/fluxorio/pollexec/pkg/future"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DefaultRegistry is the default Prometheus registry
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "pollexec"}, DefaultRegistry)

	// Metrics collection
	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds the executor's Prometheus metrics. It implements
// concurrency.Hooks, so it can be passed to runtime.Config.Observers.
type Metrics struct {
	// Task lifecycle
	TasksSpawned   *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	TasksLive      prometheus.Gauge

	// Polling
	TaskPolls        *prometheus.CounterVec
	TaskPollDuration prometheus.Histogram
	TaskWakes        *prometheus.CounterVec

	// Queues
	QueueDepth *prometheus.GaugeVec
}

var _ concurrency.Hooks = (*Metrics)(nil)

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a new metrics collection
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		TasksSpawned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pollexec_tasks_spawned_total",
				Help: "Total number of spawned tasks",
			},
			[]string{"kind"}, // kind: cooperative, blocking
		),
		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pollexec_tasks_completed_total",
				Help: "Total number of finished tasks",
			},
			[]string{"kind", "outcome"}, // outcome: completed, failed, panicked, abandoned
		),
		TasksLive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pollexec_tasks_live",
				Help: "Number of spawned tasks that have not finished",
			},
		),
		TaskPolls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pollexec_task_polls_total",
				Help: "Total number of task polls",
			},
			[]string{"result"}, // result: ready, pending, error
		),
		TaskPollDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pollexec_task_poll_duration_seconds",
				Help:    "Duration of a single task poll in seconds",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10), // 1µs to ~0.26s
			},
		),
		TaskWakes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pollexec_task_wakes_total",
				Help: "Total number of waker invocations",
			},
			[]string{"effect"}, // effect: enqueued, coalesced
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pollexec_queue_length",
				Help: "Current number of tasks waiting in a queue",
			},
			[]string{"queue"},
		),
	}
}

// TaskSpawned records a spawned task
func (m *Metrics) TaskSpawned(t *concurrency.Task) {
	m.TasksSpawned.WithLabelValues(t.Kind()).Inc()
	m.TasksLive.Inc()
}

// TaskPolled records one poll
func (m *Metrics) TaskPolled(_ *concurrency.Task, result future.Poll, elapsed time.Duration, err error) {
	label := result.String()
	if err != nil {
		label = "error"
	}
	m.TaskPolls.WithLabelValues(label).Inc()
	m.TaskPollDuration.Observe(elapsed.Seconds())
}

// TaskWoken records a waker invocation
func (m *Metrics) TaskWoken(_ *concurrency.Task, enqueued bool) {
	effect := "coalesced"
	if enqueued {
		effect = "enqueued"
	}
	m.TaskWakes.WithLabelValues(effect).Inc()
}

// TaskFinished records a finished task
func (m *Metrics) TaskFinished(t *concurrency.Task, outcome concurrency.Outcome, _ error) {
	m.TasksCompleted.WithLabelValues(t.Kind(), string(outcome)).Inc()
	m.TasksLive.Dec()
}

// QueueLength updates the queue length gauge
func (m *Metrics) QueueLength(queue string, n int) {
	m.QueueDepth.WithLabelValues(queue).Set(float64(n))
}
