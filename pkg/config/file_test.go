package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/fluxorio/pollexec/pkg/runtime"
	"github.com/fluxorio/pollexec/pkg/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	f := Default()
	require.NoError(t, f.Validate())
	assert.Equal(t, 1, f.Runtime.RepollIntervalMs)
	assert.Equal(t, "/metrics", f.Metrics.Path)
	assert.False(t, f.Tracing.Enabled)
}

func TestLoadFile_YAML(t *testing.T) {
	path := createTempFile(t, "pollexec.yaml", `
runtime:
  name: demo
  workers: 2
  blocking_workers: 1
  repoll_interval_ms: -1
logging:
  level: debug
metrics:
  enabled: true
  addr: ":9100"
`)

	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", f.Runtime.Name)
	assert.Equal(t, 2, f.Runtime.Workers)
	assert.Equal(t, 1, f.Runtime.BlockingWorkers)
	assert.Equal(t, runtime.RequeueImmediately, f.Runtime.RepollIntervalMs)
	assert.Zero(t, f.Runtime.RepollInterval())
	assert.Equal(t, 1, f.Logging.EffectiveVerbosity())
	assert.Equal(t, ":9100", f.Metrics.Addr)
	assert.Equal(t, "/metrics", f.Metrics.Path, "unset keys keep their defaults")
}

func TestLoadFile_JSON(t *testing.T) {
	path := createTempFile(t, "pollexec.json", `{
  "runtime": {"name": "json", "workers": 3},
  "tracing": {"enabled": true, "exporter": "zipkin", "endpoint": "http://localhost:9411/api/v2/spans"}
}`)

	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "json", f.Runtime.Name)
	assert.Equal(t, 3, f.Runtime.Workers)
	assert.Equal(t, tracing.ExporterZipkin, f.Tracing.Exporter)
}

func TestLoadFileWithEnv(t *testing.T) {
	path := createTempFile(t, "pollexec.yaml", "runtime:\n  workers: 2\n")
	t.Setenv("POLLEXEC_RUNTIME_WORKERS", "6")
	t.Setenv("POLLEXEC_RUNTIME_REPOLL_INTERVAL_MS", "5")
	t.Setenv("POLLEXEC_METRICS_ENABLED", "true")
	t.Setenv("POLLEXEC_TRACING_SERVICE_NAME", "from-env")

	f, err := LoadFileWithEnv(path, EnvPrefix)
	require.NoError(t, err)
	assert.Equal(t, 6, f.Runtime.Workers)
	assert.Equal(t, 5, f.Runtime.RepollIntervalMs)
	assert.True(t, f.Metrics.Enabled)
	assert.Equal(t, "from-env", f.Tracing.ServiceName)

	noFile, err := LoadFileWithEnv("", EnvPrefix)
	require.NoError(t, err)
	assert.Equal(t, 6, noFile.Runtime.Workers)
}

func TestFile_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*File)
		is     error
	}{
		{"negative workers", func(f *File) { f.Runtime.Workers = -1 }, runtime.ErrInvalidConfig},
		{"repoll below -1", func(f *File) { f.Runtime.RepollIntervalMs = -5 }, runtime.ErrInvalidConfig},
		{"empty name", func(f *File) { f.Runtime.Name = "" }, ErrInvalidField},
		{"bad level", func(f *File) { f.Logging.Level = "trace" }, ErrInvalidField},
		{"metrics without addr", func(f *File) { f.Metrics.Enabled = true; f.Metrics.Addr = "" }, ErrInvalidField},
		{"unknown exporter", func(f *File) { f.Tracing.Enabled = true; f.Tracing.Exporter = "jaeger" }, ErrInvalidField},
		{"zipkin without endpoint", func(f *File) { f.Tracing.Enabled = true; f.Tracing.Exporter = tracing.ExporterZipkin }, ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Default()
			tt.mutate(&f)
			err := f.Validate()
			require.Error(t, err)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is), "Validate() error = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestFile_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := Default()
	f.Runtime.Name = "saved"
	f.Runtime.Workers = 3

	for _, name := range []string{"out.yaml", "out.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, f.Save(path))

		loaded, err := LoadFile(path)
		require.NoError(t, err, name)
		assert.Equal(t, "saved", loaded.Runtime.Name, name)
		assert.Equal(t, 3, loaded.Runtime.Workers, name)
	}
}
