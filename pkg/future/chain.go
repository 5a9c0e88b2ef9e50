package future

// Chain returns a Future that drives each of s to completion in order.
// The first error stops the chain.
func Chain(s ...Future) Future {
	return Func(func(cx *Context) (Poll, error) {
		for len(s) != 0 {
			p, err := s[0].Poll(cx)
			if err != nil {
				return Pending, err
			}
			if p.IsPending() {
				return Pending, nil
			}
			s[0] = nil
			s = s[1:]
		}
		return Ready, nil
	})
}

// Then returns a Future that completes f and then runs fn.
func Then(f Future, fn func()) Future {
	return Chain(f, Do(fn))
}
