// Package future defines the poll/wake contract shared by every schedulable
// computation and the executor that drives it.
//
// A Future is polled by an executor. Each poll either reports Ready, meaning
// the computation has finished, or Pending, meaning it must be polled again
// later. A Future that can tell when it becomes ready takes the Waker out of
// the Context and calls Wake once progress is possible. A Future that cannot
// (Sleep, for instance) leaves the Waker alone, and the executor falls back to
// re-polling it on its own cadence.
package future

// Poll is the result of polling a Future once.
type Poll uint8

const (
	// Pending means the Future has not completed yet.
	Pending Poll = iota
	// Ready means the Future has completed and must not be polled again.
	Ready
)

// String implements fmt.Stringer.
func (p Poll) String() string {
	switch p {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// IsReady reports whether p is Ready.
func (p Poll) IsReady() bool { return p == Ready }

// IsPending reports whether p is Pending.
func (p Poll) IsPending() bool { return p == Pending }

// Future is a suspendable computation.
//
// Poll must not block. A non-nil error terminates the computation; the
// returned Poll is ignored in that case.
type Future interface {
	Poll(cx *Context) (Poll, error)
}

// Waker signals that a suspended computation may be able to make progress.
// Implementations are safe for concurrent use and may be invoked long after
// the poll that handed them out has returned.
type Waker interface {
	Wake()
}

// WakerFunc adapts a plain function to the Waker interface.
type WakerFunc func()

// Wake implements Waker.
func (f WakerFunc) Wake() { f() }

// NoopWaker is a Waker that does nothing.
var NoopWaker Waker = WakerFunc(func() {})

// Context is passed to every poll. It carries the Waker bound to the task
// being polled.
type Context struct {
	waker Waker
	taken bool
}

// NewContext returns a Context carrying w. A nil w is replaced by NoopWaker.
func NewContext(w Waker) *Context {
	if w == nil {
		w = NoopWaker
	}
	return &Context{waker: w}
}

// Waker returns the Waker of the task being polled and records that the
// Future has arranged its own wake-up.
func (cx *Context) Waker() Waker {
	cx.taken = true
	return cx.waker
}

// WakerTaken reports whether the Future asked for the Waker during this poll.
func (cx *Context) WakerTaken() bool {
	return cx.taken
}

// Reset clears the taken flag so the Context can be reused for another poll.
func (cx *Context) Reset() {
	cx.taken = false
}

// Func adapts a poll function to the Future interface.
type Func func(cx *Context) (Poll, error)

// Poll implements Future.
func (f Func) Poll(cx *Context) (Poll, error) {
	return f(cx)
}

// Do returns a Future that runs fn (if not nil) on its first poll and
// completes immediately.
func Do(fn func()) Future {
	return Func(func(*Context) (Poll, error) {
		if fn != nil {
			fn()
		}
		return Ready, nil
	})
}
