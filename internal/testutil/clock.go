package testutil

import (
	"sync"
	"time"
)

// FixedNow is the instant a new FixedClock reports.
var FixedNow = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

// FixedClock reports a controllable wall-clock time for tests of
// time-relative filters.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock at FixedNow.
func NewFixedClock() *FixedClock {
	return &FixedClock{now: FixedNow}
}

// Now returns the current fixed time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}
