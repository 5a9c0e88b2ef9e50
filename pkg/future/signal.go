package future

import "sync"

// Signal is a one-shot event. A Future obtained from Await completes once
// Fire has been called.
//
// Signal is the event-driven counterpart of Sleep: instead of being
// re-polled, a waiting task stores its Waker and is woken by Fire. Fire may
// be called from any goroutine.
type Signal struct {
	mu      sync.Mutex
	fired   bool
	waiters []Waker
}

// Fire marks the Signal as fired and wakes every registered waiter.
// Calls after the first are no-ops.
func (s *Signal) Fire() {
	s.mu.Lock()
	if s.fired {
		s.mu.Unlock()
		return
	}
	s.fired = true
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, w := range waiters {
		w.Wake()
	}
}

// Fired reports whether Fire has been called.
func (s *Signal) Fired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

// Await returns a Future that completes once s has fired.
func (s *Signal) Await() Future {
	return Func(func(cx *Context) (Poll, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.fired {
			return Ready, nil
		}
		s.waiters = append(s.waiters, cx.Waker())
		return Pending, nil
	})
}
