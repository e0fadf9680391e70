package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestRegisterExposesAllCollectors verifies that Register wires every
// collector into the registry and that seeded metrics show up in a gather.
func TestRegisterExposesAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	// Counters and histograms only appear after the first observation,
	// so seed every collector before gathering.
	RequestsTotal.WithLabelValues("GET", "2xx").Inc()
	RequestDuration.WithLabelValues("GET").Observe(0.1)
	UpstreamRequestsTotal.WithLabelValues("gpt-test", "ok").Inc()
	UpstreamLatency.WithLabelValues("gpt-test").Observe(0.1)
	ChunksEmittedTotal.WithLabelValues("gpt-test").Inc()
	UploadsTotal.WithLabelValues("ok").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"bruecke_requests_total":                false,
		"bruecke_request_duration_seconds":      false,
		"bruecke_streaming_connections_active":  false,
		"bruecke_upstream_requests_total":       false,
		"bruecke_upstream_latency_seconds":      false,
		"bruecke_chunks_emitted_total":          false,
		"bruecke_uploads_total":                 false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in registry", name)
		}
	}
}

// TestMiddlewareRecordsRequestCount verifies that the middleware increments
// the request counter for each served request.
func TestMiddlewareRecordsRequestCount(t *testing.T) {
	before := counterValue(t, RequestsTotal, "GET", "2xx")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/v1/models", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	after := counterValue(t, RequestsTotal, "GET", "2xx")
	if after-before != 1 {
		t.Errorf("expected request count to increase by 1, got delta=%f", after-before)
	}
}

// TestMiddlewareRecordsDuration verifies that the middleware records
// a request duration observation.
func TestMiddlewareRecordsDuration(t *testing.T) {
	before := histogramCount(t, RequestDuration, "POST")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/v1/chat/completions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	after := histogramCount(t, RequestDuration, "POST")
	if after-before != 1 {
		t.Errorf("expected histogram sample count to increase by 1, got delta=%d", after-before)
	}
}

// TestMiddlewareStreamingGauge verifies that the streaming connections gauge
// increments while an SSE response is in flight and decrements afterwards.
func TestMiddlewareStreamingGauge(t *testing.T) {
	baseline := gaugeValue(t, StreamingConnections)

	inHandler := make(chan float64, 1)
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		inHandler <- gaugeValue(t, StreamingConnections)
	}))

	req := httptest.NewRequest("POST", "/v1/chat/completions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	duringRequest := <-inHandler
	afterRequest := gaugeValue(t, StreamingConnections)

	if duringRequest != baseline+1 {
		t.Errorf("expected streaming gauge=%f during request, got %f", baseline+1, duringRequest)
	}
	if afterRequest != baseline {
		t.Errorf("expected streaming gauge=%f after request, got %f", baseline, afterRequest)
	}
}

// TestMiddlewareCapturesStatusCode verifies that non-2xx status codes land
// in the right status class label.
func TestMiddlewareCapturesStatusCode(t *testing.T) {
	before := counterValue(t, RequestsTotal, "POST", "4xx")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	req := httptest.NewRequest("POST", "/v1/chat/completions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	after := counterValue(t, RequestsTotal, "POST", "4xx")
	if after-before != 1 {
		t.Errorf("expected 4xx count to increase by 1, got delta=%f", after-before)
	}
}

// TestObserveUpstreamCall verifies outcome labeling for upstream calls.
func TestObserveUpstreamCall(t *testing.T) {
	okBefore := counterValue(t, UpstreamRequestsTotal, "gpt-obs", "ok")
	errBefore := counterValue(t, UpstreamRequestsTotal, "gpt-obs", "error")

	ObserveUpstreamCall("gpt-obs", 50*time.Millisecond, nil)
	ObserveUpstreamCall("gpt-obs", 50*time.Millisecond, errors.New("boom"))

	if got := counterValue(t, UpstreamRequestsTotal, "gpt-obs", "ok") - okBefore; got != 1 {
		t.Errorf("expected ok count delta 1, got %f", got)
	}
	if got := counterValue(t, UpstreamRequestsTotal, "gpt-obs", "error") - errBefore; got != 1 {
		t.Errorf("expected error count delta 1, got %f", got)
	}
	if got := histogramCount(t, UpstreamLatency, "gpt-obs"); got < 2 {
		t.Errorf("expected at least 2 latency samples, got %d", got)
	}
}

// TestStatusWriterFlush verifies that the statusWriter Flush method
// delegates to the underlying writer when it implements http.Flusher.
func TestStatusWriterFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	sw.Flush()

	if !rec.Flushed {
		t.Error("expected underlying writer to be flushed")
	}
}

// counterValue reads the current value of a CounterVec for the given labels.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// histogramCount reads the observation count from a HistogramVec.
func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

// gaugeValue reads the current value of a Gauge.
func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("writing gauge metric: %v", err)
	}
	return m.GetGauge().GetValue()
}
