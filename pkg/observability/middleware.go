package observability

import (
	"net/http"
	"strconv"
	"time"
)

// MetricsMiddleware wraps an HTTP handler to record request metrics.
//
// It captures:
//   - bruecke_requests_total (counter): per request, with method and status class labels
//   - bruecke_request_duration_seconds (histogram): request duration by method
//   - bruecke_streaming_connections_active (gauge): incremented while an SSE response is in flight
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		if sw.streaming {
			// The gauge was incremented on the first SSE write and the
			// connection is done now.
			StreamingConnections.Dec()
		}

		statusStr := strconv.Itoa(sw.status/100) + "xx"
		RequestsTotal.WithLabelValues(r.Method, statusStr).Inc()
		RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code and
// detect when the handler switched to an SSE response.
type statusWriter struct {
	http.ResponseWriter
	status    int
	written   bool
	streaming bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
		if w.Header().Get("Content-Type") == "text/event-stream" {
			w.streaming = true
			StreamingConnections.Inc()
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush forwards flushing to the underlying writer, required for SSE.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
