// Package clock lets code that stamps or waits on time take an injected
// source, so tests can pin timestamps and drive timeouts.
package clock

import (
	"sync"
	"time"
)

// Clock is the subset of the time package used by para.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Fake is a manually advanced Clock. Time stands still until Advance or
// Set is called; channels returned by After fire once the fake time
// reaches their deadline. Safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	waiters []fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewFake returns a Fake starting at t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// After returns a channel that receives once the clock has advanced by d.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- f.current
		return ch
	}
	f.waiters = append(f.waiters, fakeWaiter{deadline: f.current.Add(d), ch: ch})
	return ch
}

// Advance moves the clock forward and fires every expired waiter.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.current = f.current.Add(d)
	f.fire()
	f.mu.Unlock()
}

// Set jumps the clock to t. Moving backwards never fires waiters.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.current = t
	f.fire()
	f.mu.Unlock()
}

// Waiters returns how many After channels have not fired yet.
func (f *Fake) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

// fire must be called with mu held.
func (f *Fake) fire() {
	pending := f.waiters[:0]
	for _, w := range f.waiters {
		if !f.current.Before(w.deadline) {
			w.ch <- f.current
			continue
		}
		pending = append(pending, w)
	}
	f.waiters = pending
}
