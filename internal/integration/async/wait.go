package async

import (
	"time"
)

// DefaultPollInterval bounds how long a waiter sleeps between predicate
// checks when no change notification arrives. It also applies to WaitFor
// predicates that depend on state outside the result.
const DefaultPollInterval = 5 * time.Millisecond

// Wait blocks until r is done or timeout elapses, and reports whether r is
// done. A timeout of 0 checks once without blocking; a negative timeout
// waits indefinitely. A cancelled result never becomes done, so Wait
// returns false as soon as r is cancelled.
func Wait(r *Result, timeout time.Duration) bool {
	WaitFor(r, timeout, func(r *Result) bool {
		return r.Status() != StatusRunning
	})
	return r.Done()
}

// WaitFor blocks until pred(r) holds or timeout elapses, and reports whether
// the predicate held. The predicate is re-evaluated whenever r changes and at
// least every poll interval of r's Caller. Timeout semantics follow Wait.
func WaitFor(r *Result, timeout time.Duration, pred func(*Result) bool) bool {
	var deadline <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	poll := r.pollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		// Grab the change channel before evaluating so no update is missed.
		changed := r.changes()
		if pred(r) {
			return true
		}
		if timeout == 0 {
			return false
		}

		select {
		case <-changed:
		case <-ticker.C:
		case <-deadline:
			return pred(r)
		}
	}
}

// WaitAll blocks until every result is done or timeout elapses, and reports
// whether all of them are done. An empty list is trivially done. Timeout
// semantics follow Wait; the deadline is shared by all results.
func WaitAll(rs []*Result, timeout time.Duration) bool {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for _, r := range rs {
		remaining := timeout
		if timeout > 0 {
			remaining = time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
		}
		if !Wait(r, remaining) {
			return false
		}
	}
	return true
}
