package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetricsMiddleware wraps an HTTP handler to record request metrics.
//
// It captures:
//   - loupe_requests_total (counter): incremented per request with method, route, and status class labels
//   - loupe_request_duration_seconds (histogram): request duration with method and route labels
//   - loupe_inflight_requests (gauge): incremented while a request is being served
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		InFlightRequests.Inc()
		defer InFlightRequests.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		route := routeLabel(r.URL.Path)

		// Build a status class label like "2xx", "4xx", "5xx".
		statusStr := strconv.Itoa(sw.status/100) + "xx"

		RequestsTotal.WithLabelValues(r.Method, route, statusStr).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(duration)
	})
}

// routeLabel collapses per-resource path segments so that label cardinality
// stays bounded. Task lookups carry a UUID in the final segment.
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/v1/ingest/tasks/") {
		return "/v1/ingest/tasks/:id"
	}
	return path
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer and marks the status as written.
func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Flush delegates to the underlying writer if it implements http.Flusher.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter, enabling http.ResponseController
// and similar utilities to access the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
