package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/fluxorio/pollexec/pkg/core/concurrency"
	"github.com/fluxorio/pollexec/pkg/future"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/fluxorio/pollexec"

// TaskTracer records one span per task, from spawn to finish, with an event
// for every poll and wake.
type TaskTracer struct {
	tracer trace.Tracer
	spans  sync.Map // task ID -> trace.Span
}

var _ concurrency.Hooks = (*TaskTracer)(nil)

// NewTaskTracer creates a tracer on tp, or on the global provider when tp
// is nil.
func NewTaskTracer(tp trace.TracerProvider) *TaskTracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TaskTracer{tracer: tp.Tracer(instrumentationName)}
}

func (tt *TaskTracer) TaskSpawned(t *concurrency.Task) {
	_, span := tt.tracer.Start(context.Background(), "task "+t.Name(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(t.SpawnedAt()),
		trace.WithAttributes(
			attribute.String("task.id", t.ID()),
			attribute.String("task.name", t.Name()),
			attribute.String("task.kind", t.Kind()),
		),
	)
	tt.spans.Store(t.ID(), span)
}

func (tt *TaskTracer) span(t *concurrency.Task) (trace.Span, bool) {
	v, ok := tt.spans.Load(t.ID())
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

func (tt *TaskTracer) TaskPolled(t *concurrency.Task, result future.Poll, elapsed time.Duration, err error) {
	span, ok := tt.span(t)
	if !ok {
		return
	}
	span.AddEvent("poll", trace.WithAttributes(
		attribute.String("poll.result", result.String()),
		attribute.Int64("poll.elapsed_us", elapsed.Microseconds()),
		attribute.Bool("poll.error", err != nil),
	))
}

func (tt *TaskTracer) TaskWoken(t *concurrency.Task, enqueued bool) {
	span, ok := tt.span(t)
	if !ok {
		return
	}
	span.AddEvent("wake", trace.WithAttributes(attribute.Bool("wake.enqueued", enqueued)))
}

func (tt *TaskTracer) TaskFinished(t *concurrency.Task, outcome concurrency.Outcome, err error) {
	v, ok := tt.spans.LoadAndDelete(t.ID())
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(
		attribute.String("task.outcome", string(outcome)),
		attribute.Int64("task.polls", int64(t.Polls())),
	)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case outcome == concurrency.OutcomeCompleted:
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (tt *TaskTracer) QueueLength(string, int) {}
