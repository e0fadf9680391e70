// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the gateway.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LLMBuckets defines histogram buckets suited for conversational AI
// latencies, ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bruecke_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bruecke_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bruecke_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// UpstreamRequestsTotal counts chat calls to the upstream by model and outcome.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bruecke_upstream_requests_total",
			Help: "Upstream chat requests",
		},
		[]string{"model", "status"},
	)

	// UpstreamLatency records upstream call latency in seconds by model.
	// For streaming calls this covers the time to response headers only.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bruecke_upstream_latency_seconds",
			Help:    "Upstream call latency",
			Buckets: LLMBuckets,
		},
		[]string{"model"},
	)

	// ChunksEmittedTotal counts outbound SSE chunks by model.
	ChunksEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bruecke_chunks_emitted_total",
			Help: "Outbound stream chunks",
		},
		[]string{"model"},
	)

	// UploadsTotal counts accepted multipart file uploads by outcome.
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bruecke_uploads_total",
			Help: "Accepted multipart uploads",
		},
		[]string{"status"},
	)
)

// Register registers all collectors with the given registry. Call once at
// startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		UpstreamRequestsTotal,
		UpstreamLatency,
		ChunksEmittedTotal,
		UploadsTotal,
	)
}

// ObserveUpstreamCall records one upstream chat call.
func ObserveUpstreamCall(model string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	UpstreamRequestsTotal.WithLabelValues(model, status).Inc()
	UpstreamLatency.WithLabelValues(model).Observe(d.Seconds())
}
