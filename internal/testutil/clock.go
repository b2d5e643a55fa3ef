package testutil

import (
	"sync"
	"time"
)

// Today is the instant tests treat as now: Wednesday 2025-04-16 10:30 UTC.
var Today = time.Date(2025, 4, 16, 10, 30, 0, 0, time.UTC)

// FixedClock is a settable wall clock for tests.
//
// Pass clock.Now wherever a component takes a func() time.Time, so relative
// dates like "last month" resolve the same on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock stopped at t. A zero t means Today.
func NewFixedClock(t time.Time) *FixedClock {
	if t.IsZero() {
		t = Today
	}
	return &FixedClock{now: t}
}

// Now returns the current instant without moving the clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new instant.
func (c *FixedClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
