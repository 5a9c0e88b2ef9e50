package future

import (
	"fmt"
	"math"
	"time"
)

// maxSleepMillis is the largest millisecond count a time.Duration can hold.
const maxSleepMillis = uint64(math.MaxInt64 / int64(time.Millisecond))

// Sleep is a Future that completes once its duration has elapsed since it
// was created.
//
// Completion is level-triggered: every poll recomputes the elapsed time from
// the immutable start instant, so Sleep keeps reporting Ready once it has
// done so. Sleep never takes the Waker; the executor re-polls it.
type Sleep struct {
	clock    Clock
	start    time.Time
	duration time.Duration
	startErr error
}

// NewSleep returns a Sleep of duration d measured on SystemClock.
// Negative durations are treated as zero.
func NewSleep(d time.Duration) *Sleep {
	return NewSleepWithClock(d, SystemClock)
}

// SleepMillis returns a Sleep of ms milliseconds. Counts too large for a
// time.Duration saturate at the longest representable delay.
func SleepMillis(ms uint64) *Sleep {
	if ms > maxSleepMillis {
		return NewSleep(time.Duration(math.MaxInt64))
	}
	return NewSleep(time.Duration(ms) * time.Millisecond)
}

// NewSleepWithClock returns a Sleep of duration d measured on clock.
//
// The constructor never fails. If clock cannot be read, the failure is kept
// and reported by Poll.
func NewSleepWithClock(d time.Duration, clock Clock) *Sleep {
	if d < 0 {
		d = 0
	}
	if clock == nil {
		clock = SystemClock
	}
	s := &Sleep{clock: clock, duration: d}
	s.start, s.startErr = clock.Now()
	return s
}

// Duration returns the requested delay.
func (s *Sleep) Duration() time.Duration { return s.duration }

// Start returns the instant the Sleep was created.
func (s *Sleep) Start() time.Time { return s.start }

// Poll implements Future.
func (s *Sleep) Poll(*Context) (Poll, error) {
	if s.startErr != nil {
		return Pending, fmt.Errorf("%w: %v", ErrClockUnavailable, s.startErr)
	}
	if s.duration == 0 {
		return Ready, nil
	}
	now, err := s.clock.Now()
	if err != nil {
		return Pending, fmt.Errorf("%w: %v", ErrClockUnavailable, err)
	}
	if now.Sub(s.start) >= s.duration {
		return Ready, nil
	}
	return Pending, nil
}

// Remaining returns how much of the delay is left, or zero once elapsed.
func (s *Sleep) Remaining() (time.Duration, error) {
	if s.startErr != nil {
		return 0, fmt.Errorf("%w: %v", ErrClockUnavailable, s.startErr)
	}
	now, err := s.clock.Now()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrClockUnavailable, err)
	}
	if left := s.duration - now.Sub(s.start); left > 0 {
		return left, nil
	}
	return 0, nil
}
