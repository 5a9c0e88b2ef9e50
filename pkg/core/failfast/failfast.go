// Package failfast turns broken invariants into immediate panics.
//
// It is used for programming errors only (a nil future handed to the
// scheduler, a live-task counter dropping below zero). Recoverable conditions
// are returned as errors instead.
package failfast

import (
	"fmt"
	"reflect"
	"runtime/debug"
)

// Violation is the panic value raised by this package.
type Violation struct {
	Message string
	Cause   error
	Stack   []byte
}

func (v *Violation) Error() string {
	if v.Cause != nil {
		return "fail-fast: " + v.Message + ": " + v.Cause.Error()
	}
	return "fail-fast: " + v.Message
}

func (v *Violation) Unwrap() error { return v.Cause }

func raise(cause error, format string, args ...interface{}) {
	panic(&Violation{
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
		Stack:   debug.Stack(),
	})
}

// Err panics if err != nil.
func Err(err error) {
	if err != nil {
		raise(err, "unexpected error")
	}
}

// If panics with the formatted message unless condition holds.
func If(condition bool, format string, args ...interface{}) {
	if !condition {
		raise(nil, format, args...)
	}
}

// NotNil panics if v is nil, including typed nil pointers, funcs, maps,
// slices, channels and interfaces.
func NotNil(v interface{}, name string) {
	if isNil(v) {
		raise(nil, "%s is nil", name)
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
