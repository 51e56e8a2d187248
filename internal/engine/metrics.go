package engine

import "time"

// Metrics receives loop events. internal/metrics provides a Prometheus
// implementation; the zero engine uses a no-op.
//
// Implementations must be safe for concurrent use: Submit and the shutdown
// triggers call them from caller goroutines.
type Metrics interface {
	// RequestServed is called once per request the loop served.
	// code is empty on success.
	RequestServed(op string, code ErrorCode, d time.Duration)

	// QueueDepth reports the mailbox length after each enqueue and dequeue.
	QueueDepth(n int)

	// ReplyDropped is called when a reply could not be delivered.
	ReplyDropped(op string)

	// ShutdownTriggered is called once, by the trigger that won.
	ShutdownTriggered(trigger string)
}

// Shutdown trigger names.
const (
	TriggerRequest     = "request"
	TriggerWindowClose = "window_close"
	TriggerContext     = "context"
)

type nopMetrics struct{}

func (nopMetrics) RequestServed(string, ErrorCode, time.Duration) {}
func (nopMetrics) QueueDepth(int)                                 {}
func (nopMetrics) ReplyDropped(string)                            {}
func (nopMetrics) ShutdownTriggered(string)                       {}
