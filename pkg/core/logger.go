package core

import (
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// Logger provides leveled, structured logging.
// This abstraction allows swapping logging implementations
type Logger interface {
	// Error logs an error message
	Error(args ...interface{})

	// Errorf logs a formatted error message
	Errorf(format string, args ...interface{})

	// Warn logs a warning message
	Warn(args ...interface{})

	// Warnf logs a formatted warning message
	Warnf(format string, args ...interface{})

	// Info logs an informational message
	Info(args ...interface{})

	// Infof logs a formatted informational message
	Infof(format string, args ...interface{})

	// Debug logs a debug message (verbosity 1)
	Debug(args ...interface{})

	// Debugf logs a formatted debug message (verbosity 1)
	Debugf(format string, args ...interface{})

	// WithFields returns a Logger that attaches fields to every entry
	WithFields(fields map[string]interface{}) Logger

	// Logr exposes the underlying logr.Logger
	Logr() logr.Logger
}

// logrLogger implements Logger on top of a logr.Logger so any logr sink
// (stdr, zapr, funcr, ...) can back it.
type logrLogger struct {
	l logr.Logger
}

// NewDefaultLogger creates a Logger writing to stderr through stdr.
// Debug entries are emitted only when SetLogVerbosity(1) or higher is set.
func NewDefaultLogger() Logger {
	return NewLogrLogger(stdr.New(log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)))
}

// NewLogrLogger adapts an existing logr.Logger.
func NewLogrLogger(l logr.Logger) Logger {
	return &logrLogger{l: l}
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return &logrLogger{l: logr.Discard()}
}

// SetLogVerbosity sets the global stdr verbosity and returns the previous one.
func SetLogVerbosity(v int) int {
	return stdr.SetVerbosity(v)
}

// Error logs an error message
func (l *logrLogger) Error(args ...interface{}) {
	l.l.Error(nil, fmt.Sprint(args...))
}

// Errorf logs a formatted error message
func (l *logrLogger) Errorf(format string, args ...interface{}) {
	l.l.Error(nil, fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *logrLogger) Warn(args ...interface{}) {
	l.l.Info(fmt.Sprint(args...), "level", "warn")
}

// Warnf logs a formatted warning message
func (l *logrLogger) Warnf(format string, args ...interface{}) {
	l.l.Info(fmt.Sprintf(format, args...), "level", "warn")
}

// Info logs an informational message
func (l *logrLogger) Info(args ...interface{}) {
	l.l.Info(fmt.Sprint(args...))
}

// Infof logs a formatted informational message
func (l *logrLogger) Infof(format string, args ...interface{}) {
	l.l.Info(fmt.Sprintf(format, args...))
}

// Debug logs a debug message
func (l *logrLogger) Debug(args ...interface{}) {
	l.l.V(1).Info(fmt.Sprint(args...))
}

// Debugf logs a formatted debug message
func (l *logrLogger) Debugf(format string, args ...interface{}) {
	l.l.V(1).Info(fmt.Sprintf(format, args...))
}

// WithFields attaches fields in key order so output is stable.
func (l *logrLogger) WithFields(fields map[string]interface{}) Logger {
	if len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}
	return &logrLogger{l: l.l.WithValues(kv...)}
}

// Logr exposes the underlying logr.Logger
func (l *logrLogger) Logr() logr.Logger {
	return l.l
}
