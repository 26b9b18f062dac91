package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(httpRequestsTotal, httpRequestDurationMs) }

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, labeled by method, route pattern and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "HTTP request duration in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"method", "route"},
	)
)

// ObserveHTTPRequest records one served request. route is the router pattern
// ("/api/v1/jobs/{id}"), never the raw path, to keep cardinality bounded.
func ObserveHTTPRequest(method, route string, status int, ms int64) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDurationMs.WithLabelValues(method, route).Observe(float64(ms))
}
