package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/fluxorio/pollexec/pkg/core"
	"github.com/fluxorio/pollexec/pkg/runtime"
	"github.com/fluxorio/pollexec/pkg/tracing"
)

// EnvPrefix is the default prefix for environment overrides.
const EnvPrefix = "POLLEXEC"

// Logging configures the default logger.
type Logging struct {
	// Level is "info" or "debug". Debug raises Verbosity to at least 1.
	Level string `yaml:"level" json:"level"`
	// Verbosity is the logr verbosity. Debug entries need 1 or more.
	Verbosity int `yaml:"verbosity" json:"verbosity"`
}

// EffectiveVerbosity combines Level and Verbosity.
func (l Logging) EffectiveVerbosity() int {
	if l.Level == "debug" && l.Verbosity < 1 {
		return 1
	}
	return l.Verbosity
}

// Apply sets the global log verbosity.
func (l Logging) Apply() {
	core.SetLogVerbosity(l.EffectiveVerbosity())
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// File is the on-disk configuration of a pollexec process.
type File struct {
	Runtime runtime.Config `yaml:"runtime" json:"runtime"`
	Logging Logging        `yaml:"logging" json:"logging"`
	Metrics Metrics        `yaml:"metrics" json:"metrics"`
	Tracing tracing.Config `yaml:"tracing" json:"tracing"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Runtime: runtime.DefaultConfig(),
		Logging: Logging{Level: "info"},
		Metrics: Metrics{Addr: ":9090", Path: "/metrics"},
		Tracing: tracing.DefaultConfig(),
	}
}

// LoadFile reads path over Default and validates the result.
func LoadFile(path string) (File, error) {
	f := Default()
	if err := Load(path, &f); err != nil {
		return File{}, err
	}
	return f, f.Validate()
}

// LoadFileWithEnv is LoadFile followed by environment overrides. An empty
// path skips the file and applies overrides to Default.
func LoadFileWithEnv(path, prefix string) (File, error) {
	f := Default()
	if path != "" {
		if err := Load(path, &f); err != nil {
			return File{}, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	if err := ApplyEnvOverrides(prefix, &f); err != nil {
		return File{}, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	return f, f.Validate()
}

// Validate checks every section.
func (f *File) Validate() error {
	if err := f.Runtime.Validate(); err != nil {
		return err
	}

	validators := []Validator{
		StringLengthValidator("runtime.name", 1, 64),
		RangeValidator("runtime.workers", 0, 4096),
		RangeValidator("runtime.blocking_workers", 0, 4096),
		RangeValidator("runtime.repoll_interval_ms", runtime.RequeueImmediately, math.MaxInt32),
		OneOfValidator("logging.level", "info", "debug"),
		RangeValidator("logging.verbosity", 0, 10),
	}
	if f.Metrics.Enabled {
		validators = append(validators, RequiredFields("metrics.addr", "metrics.path"))
	}
	if f.Tracing.Enabled {
		validators = append(validators, OneOfValidator("tracing.exporter", tracing.ExporterStdout, tracing.ExporterZipkin))
		if f.Tracing.Exporter == tracing.ExporterZipkin {
			validators = append(validators, RequiredFields("tracing.endpoint"))
		}
	}
	return Validate(f, validators...)
}

// Save writes f as YAML or JSON depending on the extension of path.
func (f File) Save(path string) error {
	if strings.HasSuffix(path, ".json") {
		return SaveJSON(path, f)
	}
	return SaveYAML(path, f)
}
