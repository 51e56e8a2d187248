package engine

import "context"

// DefaultQueueSize is the default capacity of the request mailbox.
const DefaultQueueSize = 32

// mailbox holds the two channels the Run loop listens on.
//
// inbox is bounded: senders block while it is full, which is the only
// back-pressure callers see. It is never closed. Senders select on the
// engine's done channel instead, so a send after shutdown fails cleanly
// rather than panicking.
//
// wake is the out-of-band shutdown signal. It has one slot and only the
// winner of the shutdown flag writes to it, so the write never blocks and
// does not depend on inbox capacity.
type mailbox struct {
	inbox chan Request
	wake  chan struct{}
}

// newMailbox creates a mailbox holding up to size queued requests.
// A size below 1 falls back to DefaultQueueSize.
func newMailbox(size int) *mailbox {
	if size < 1 {
		size = DefaultQueueSize
	}
	return &mailbox{
		inbox: make(chan Request, size),
		wake:  make(chan struct{}, 1),
	}
}

// put enqueues req, blocking while the inbox is full.
// Returns ErrNoResponse once done is closed, or ctx.Err() if ctx ends first.
func (m *mailbox) put(ctx context.Context, done <-chan struct{}, req Request) error {
	select {
	case <-done:
		return ErrNoResponse
	default:
	}

	select {
	case m.inbox <- req:
		return nil
	case <-done:
		return ErrNoResponse
	case <-ctx.Done():
		return ctx.Err()
	}
}

// signal places the out-of-band shutdown token. Non-blocking; returns false
// if a token is already waiting.
func (m *mailbox) signal() bool {
	select {
	case m.wake <- struct{}{}:
		return true
	default:
		return false
	}
}

// drain removes every queued request without blocking.
func (m *mailbox) drain() []Request {
	var reqs []Request
	for {
		select {
		case req := <-m.inbox:
			reqs = append(reqs, req)
		default:
			return reqs
		}
	}
}

// Len returns the number of queued requests.
func (m *mailbox) Len() int {
	return len(m.inbox)
}

// Cap returns the inbox capacity.
func (m *mailbox) Cap() int {
	return cap(m.inbox)
}
