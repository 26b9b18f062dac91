package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal, cacheClearedTotal) }

var (
	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Tracks cache hits and misses per namespace.",
		},
		[]string{"cache", "result"}, // e.g., cache="blueprint", result="hit"
	)

	cacheClearedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_cleared_total",
			Help: "Entries removed by admin clear operations per namespace.",
		},
		[]string{"namespace"},
	)
)

func IncCacheRequest(cacheName, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func AddCacheCleared(namespace string, n int) {
	cacheClearedTotal.WithLabelValues(norm(namespace)).Add(float64(n))
}
