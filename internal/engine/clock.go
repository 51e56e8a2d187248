package engine

import "sync/atomic"

// Clock stamps served requests with a strictly increasing seq number.
//
// The seq appears in every log line the loop writes for a request, which
// makes the serve order visible when several callers race.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// Only the Run goroutine calls Next in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out, or 0.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
