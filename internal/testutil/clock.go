package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time for DeterministicClock.
var Epoch = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

// DeterministicClock is a wall clock for tests that advances by a fixed
// step on every read.
//
// Every call to Now() returns a strictly later instant, so rows written by
// a store using it have distinct, ordered timestamps and scenario traces
// are byte-identical across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	n     int64
}

// NewDeterministicClock creates a clock starting at Epoch with a one
// second step.
//
// The first call to Now() returns Epoch + 1s.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(Epoch, time.Second)
}

// NewDeterministicClockAt creates a clock starting at start with the given
// step. A non-positive step defaults to one second.
func NewDeterministicClockAt(start time.Time, step time.Duration) *DeterministicClock {
	if step <= 0 {
		step = time.Second
	}
	return &DeterministicClock{start: start.UTC(), step: step}
}

// Now advances the clock by one step and returns the new instant.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.start.Add(time.Duration(c.n) * c.step)
}

// Current returns the last instant returned by Now without advancing.
// Before the first Now it returns the start time.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.n) * c.step)
}

// Ticks returns how many times Now has been called.
func (c *DeterministicClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock to its start time.
//
// Used for test reuse. After Reset(), the next call to Now() returns
// start + step again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
