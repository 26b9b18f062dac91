// File: internal/infra/metrics/admin.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(adminOpTotal) }

var adminOpTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_op_total",
		Help: "Tracks attempts to use admin cache/job operations.",
	},
	[]string{"op", "status"}, // status: 'authorized', 'unauthorized'
)

func IncAdminOp(op, status string) {
	adminOpTotal.WithLabelValues(norm(op), norm(status)).Inc()
}
