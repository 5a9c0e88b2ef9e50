// Package tracing wires OpenTelemetry into the executor: Init installs a
// global tracer provider and TaskTracer records one span per task.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	ExporterStdout = "stdout"
	ExporterZipkin = "zipkin"
)

// ErrUnknownExporter is returned by Init for an unsupported exporter name.
var ErrUnknownExporter = errors.New("unknown trace exporter")

// Config selects and configures the span exporter.
type Config struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Exporter is "stdout" (default) or "zipkin".
	Exporter string `yaml:"exporter" json:"exporter"`
	// Endpoint is the zipkin collector URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Output is the stdout exporter's file. Empty means os.Stdout.
	Output         string `yaml:"output" json:"output"`
	ServiceName    string `yaml:"service_name" json:"service_name"`
	ServiceVersion string `yaml:"service_version" json:"service_version"`
}

// DefaultConfig returns a disabled stdout configuration.
func DefaultConfig() Config {
	return Config{
		Exporter:       ExporterStdout,
		ServiceName:    "pollexec",
		ServiceVersion: "dev",
	}
}

var (
	providerOnce sync.Once
	providerErr  error
	provider     *sdktrace.TracerProvider
	providerMu   sync.Mutex
)

// Init installs the global tracer provider described by cfg. It is a no-op
// when tracing is disabled. The first successful call wins.
func Init(cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	exporter, opt, err := newExporter(cfg)
	if err != nil {
		return err
	}
	return installProvider(cfg.ServiceName, cfg.ServiceVersion, exporter, opt)
}

func newExporter(cfg Config) (sdktrace.SpanExporter, func(sdktrace.SpanExporter) sdktrace.TracerProviderOption, error) {
	switch cfg.Exporter {
	case "", ExporterStdout:
		var w io.Writer = os.Stdout
		if cfg.Output != "" {
			f, err := os.Create(cfg.Output)
			if err != nil {
				return nil, nil, err
			}
			w = f
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		return exp, simple, err
	case ExporterZipkin:
		if cfg.Endpoint == "" {
			return nil, nil, fmt.Errorf("zipkin exporter requires an endpoint")
		}
		exp, err := zipkin.New(cfg.Endpoint)
		return exp, batched, err
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownExporter, cfg.Exporter)
	}
}

func simple(exp sdktrace.SpanExporter) sdktrace.TracerProviderOption {
	return sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exp))
}

func batched(exp sdktrace.SpanExporter) sdktrace.TracerProviderOption {
	return sdktrace.WithBatcher(exp)
}

func installProvider(serviceName, serviceVersion string, exporter sdktrace.SpanExporter, processor func(sdktrace.SpanExporter) sdktrace.TracerProviderOption) error {
	providerOnce.Do(func() {
		res, err := resource.New(context.Background(),
			resource.WithAttributes(
				attribute.String("service.name", serviceName),
				attribute.String("service.version", serviceVersion),
			),
		)
		if err != nil {
			providerErr = err
			return
		}

		tp := sdktrace.NewTracerProvider(processor(exporter), sdktrace.WithResource(res))
		otel.SetTracerProvider(tp)

		providerMu.Lock()
		provider = tp
		providerMu.Unlock()
	})
	return providerErr
}

// Shutdown flushes and stops the provider installed by Init.
func Shutdown(ctx context.Context) error {
	providerMu.Lock()
	tp := provider
	providerMu.Unlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}
