package future

import (
	"errors"
	"time"
)

// ErrClockUnavailable is returned when the current time cannot be read.
var ErrClockUnavailable = errors.New("future: clock unavailable")

// Clock is a source of monotonic time.
type Clock interface {
	Now() (time.Time, error)
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() (time.Time, error)

// Now implements Clock.
func (f ClockFunc) Now() (time.Time, error) { return f() }

type systemClock struct{}

// Now returns time.Now, which carries a monotonic clock reading.
func (systemClock) Now() (time.Time, error) {
	return time.Now(), nil
}

// SystemClock is the process clock. Elapsed-time computations on its values
// use the monotonic reading and are immune to wall-clock adjustments.
var SystemClock Clock = systemClock{}
