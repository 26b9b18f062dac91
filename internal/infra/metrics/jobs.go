package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsProcessedTotal, jobDurationMs, jobQueueDepth, jobsSweptTotal) }

var (
	jobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_jobs_processed_total",
			Help: "Total number of generation jobs processed, labeled by status.",
		},
		[]string{"status"}, // 'completed', 'failed'
	)

	jobDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_job_duration_ms",
			Help:    "Generation job wall-clock duration in milliseconds.",
			Buckets: []float64{250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000, 300000},
		},
		[]string{"status"},
	)

	jobQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "generation_job_queue_depth",
			Help: "Jobs waiting in the FIFO queue.",
		},
	)

	jobsSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "generation_jobs_swept_total",
			Help: "Terminal jobs dropped by the retention sweep.",
		},
	)
)

func IncJob(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveJobDuration(status string, ms int64) {
	jobDurationMs.WithLabelValues(norm(status)).Observe(float64(ms))
}

func SetJobQueueDepth(n int) {
	jobQueueDepth.Set(float64(n))
}

func AddJobsSwept(n int) {
	jobsSweptTotal.Add(float64(n))
}
