// Package metrics provides the Prometheus implementation of engine.Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/diary/internal/engine"
)

// Default histogram buckets for request latency (in seconds).
var defaultBuckets = []float64{
	.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5,
}

// engineMetrics implements engine.Metrics using Prometheus.
type engineMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	repliesDropped  *prometheus.CounterVec
	mailboxDepth    prometheus.Gauge
	shutdownsTotal  *prometheus.CounterVec
}

// NewEngineMetrics creates the engine metrics and registers them with reg.
func NewEngineMetrics(reg prometheus.Registerer) engine.Metrics {
	m := &engineMetrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "diary_engine_request_duration_seconds",
			Help:    "Store call time per request in seconds",
			Buckets: defaultBuckets,
		}, []string{"op"}),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diary_engine_requests_total",
			Help: "Total number of requests served",
		}, []string{"op", "outcome"}),

		repliesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diary_engine_replies_dropped_total",
			Help: "Replies that could not be delivered to the caller",
		}, []string{"op"}),

		mailboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "diary_engine_mailbox_depth",
			Help: "Current number of queued requests",
		}),

		shutdownsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diary_engine_shutdowns_total",
			Help: "Shutdowns by the trigger that started them",
		}, []string{"trigger"}),
	}

	reg.MustRegister(
		m.requestDuration,
		m.requestsTotal,
		m.repliesDropped,
		m.mailboxDepth,
		m.shutdownsTotal,
	)

	return m
}

func (m *engineMetrics) RequestServed(op string, code engine.ErrorCode, d time.Duration) {
	m.requestDuration.WithLabelValues(op).Observe(d.Seconds())
	m.requestsTotal.WithLabelValues(op, outcome(code)).Inc()
}

func (m *engineMetrics) QueueDepth(n int) {
	m.mailboxDepth.Set(float64(n))
}

func (m *engineMetrics) ReplyDropped(op string) {
	m.repliesDropped.WithLabelValues(op).Inc()
}

func (m *engineMetrics) ShutdownTriggered(trigger string) {
	m.shutdownsTotal.WithLabelValues(trigger).Inc()
}

var _ engine.Metrics = (*engineMetrics)(nil)

// outcome maps an error code to a low-cardinality label value.
func outcome(code engine.ErrorCode) string {
	switch code {
	case "":
		return "ok"
	case engine.ErrCodeStore:
		return "store_error"
	case engine.ErrCodePanic:
		return "panic"
	default:
		return "error"
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
