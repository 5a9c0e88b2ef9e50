package concurrency

import (
	"fmt"
	"runtime/debug"

	"github.com/fluxorio/pollexec/pkg/future"
)

// TaskPanicError is the error a task finishes with when its future panics.
type TaskPanicError struct {
	TaskID string
	Value  interface{}
	Stack  []byte
}

func (e *TaskPanicError) Error() string {
	return fmt.Sprintf("task %s panicked: %v\n%s", e.TaskID, e.Value, e.Stack)
}

// Unwrap exposes the panic value when it is an error.
func (e *TaskPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// safePoll polls t, converting a panic into a *TaskPanicError so one faulty
// future cannot take its worker down.
func safePoll(t *Task, cx *future.Context) (p future.Poll, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = future.Pending
			err = &TaskPanicError{TaskID: t.ID(), Value: r, Stack: debug.Stack()}
		}
	}()
	return t.Poll(cx)
}

func outcomeOf(err error) Outcome {
	switch err.(type) {
	case nil:
		return OutcomeCompleted
	case *TaskPanicError:
		return OutcomePanicked
	default:
		return OutcomeFailed
	}
}
