package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(rateLimitDecisions) }

var rateLimitDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_decisions_total",
		Help: "Sliding window admission decisions per scope.",
	},
	[]string{"scope", "decision"}, // scope='user'|'provider', decision='allowed'|'rejected'
)

func IncRateLimit(scope string, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "rejected"
	}
	rateLimitDecisions.WithLabelValues(norm(scope), decision).Inc()
}
