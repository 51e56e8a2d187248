// Package engine serializes every diary store operation through one goroutine.
//
// The store handle is not safe for concurrent use. Engine owns it for the
// whole process lifetime and is the only code that ever calls it.
//
// ARCHITECTURE:
//
// Single-Owner Actor Loop:
// Callers never touch the store. They build a Request carrying a one-shot
// reply channel and hand it to Submit. Run takes requests off a bounded
// mailbox one at a time, calls the store, and writes the Result to the reply
// channel. This ensures:
//   - No two store operations ever overlap
//   - Requests are served in the order they were enqueued
//   - Every accepted request gets exactly one reply, failures included
//
// Request Flow:
//  1. Caller builds a Request variant (CreateEntry, ReadEntry, ...) with a
//     capacity-1 reply channel, usually via Call
//  2. Submit stamps a request id and places it on the mailbox
//  3. Run dequeues it, stamps the next logical seq and calls the store
//  4. The store result (value or error) goes back on the reply channel
//
// Once Run picks a request the store call runs to completion. Cancelling the
// caller's context only stops the caller from waiting.
//
// Shutdown:
// Two triggers race to stop the loop. Shutdown is an explicit request that
// queues behind everything enqueued before it. CloseRequested is the host's
// window-close hook and signals the loop out of band through a one-slot
// channel that does not depend on mailbox capacity. A single atomic flag
// admits only the first trigger. Whichever wins, the store is closed exactly
// once and Done is closed after it. Callers still waiting at that point get
// ErrNoResponse instead of hanging.
package engine
