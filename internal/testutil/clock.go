package testutil

import (
	"sync"
	"time"
)

// FakeClock is a controllable time source for deterministic retry tests.
//
// By default every sleep returns immediately and advances the clock by the
// requested duration. After BlockSleeps, sleeps only end when Advance moves
// the clock past them.
type FakeClock struct {
	mu       sync.Mutex
	now      time.Time
	sleeps   []time.Duration
	block    bool
	waiters  []fakeWaiter
	sleeping chan time.Duration
}

type fakeWaiter struct {
	until time.Time
	ch    chan time.Time
}

// NewFakeClock creates a fake clock starting at t
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{
		now:      t,
		sleeping: make(chan time.Duration, 64),
	}
}

// Now returns the current fake time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After records a sleep of d and returns a channel that fires when the sleep
// ends.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sleeps = append(c.sleeps, d)
	ch := make(chan time.Time, 1)

	if !c.block {
		c.now = c.now.Add(d)
		ch <- c.now
		return ch
	}

	c.waiters = append(c.waiters, fakeWaiter{until: c.now.Add(d), ch: ch})
	select {
	case c.sleeping <- d:
	default:
	}
	return ch
}

// BlockSleeps makes subsequent sleeps wait for Advance.
func (c *FakeClock) BlockSleeps() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block = true
}

// Advance moves the clock forward and wakes sleepers whose time has come.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	pending := c.waiters[:0]
	for _, w := range c.waiters {
		if w.until.After(c.now) {
			pending = append(pending, w)
			continue
		}
		w.ch <- c.now
	}
	c.waiters = pending
}

// WaitForSleep blocks until a blocked sleep starts or timeout elapses. It
// returns the requested sleep duration and whether one started.
func (c *FakeClock) WaitForSleep(timeout time.Duration) (time.Duration, bool) {
	select {
	case d := <-c.sleeping:
		return d, true
	case <-time.After(timeout):
		return 0, false
	}
}

// Sleeps returns every requested sleep in order.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// TotalSleep returns the sum of all requested sleeps.
func (c *FakeClock) TotalSleep() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.sleeps {
		total += d
	}
	return total
}
