package handler

import (
	"fmt"
	"net/http"

	"github.com/hellodevops/greeter/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "# TYPE greeter_http_requests_total counter\n")
	for _, c := range snap.Requests {
		writeMetric(w, "greeter_http_requests_total{method=%q,route=%q,status=\"%d\"} %d\n",
			c.Method, c.Route, c.Status, c.Count)
	}

	writeMetric(w, "# TYPE greeter_http_request_duration_seconds summary\n")
	for _, d := range snap.Durations {
		writeMetric(w, "greeter_http_request_duration_seconds_count{route=%q} %d\n", d.Route, d.Count)
		writeMetric(w, "greeter_http_request_duration_seconds_sum{route=%q} %.6f\n", d.Route, float64(d.TotalNs)/1e9)
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
