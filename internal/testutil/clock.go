package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic wall clock for tests.
//
// The first call to Now() returns base; every later call advances by step.
// Stores stamped with a StepClock produce byte-identical timestamps across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	base time.Time
	step time.Duration
	n    int64
}

// NewStepClock creates a clock starting at base and advancing by step.
func NewStepClock(base time.Time, step time.Duration) *StepClock {
	return &StepClock{base: base.UTC(), step: step}
}

// DefaultBase is the base time used by NewDefaultClock.
var DefaultBase = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// NewDefaultClock starts at DefaultBase and advances one second per call.
func NewDefaultClock() *StepClock {
	return NewStepClock(DefaultBase, time.Second)
}

// Now returns the next timestamp.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Calls returns how many times Now has been called.
func (c *StepClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock so the next Now() returns base again.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
