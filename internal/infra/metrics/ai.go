package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		aiTokensTotal,
		aiCallsLatencyMs,
		aiStageFailures,
		aiPacingWaits,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of completion (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_total",
			Help: "Sum of total tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"provider", "model", "success"},
	)

	aiStageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_stage_failures_total",
			Help: "Chain stage failures per agent and failure kind.",
		},
		[]string{"agent", "kind"},
	)

	aiPacingWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_pacing_waits_total",
			Help: "Model calls delayed by the provider pacing limiter.",
		},
		[]string{"provider", "model"},
	)
)

func ObserveModelUsage(provider, model string, tokensIn, tokensOut, tokensTotal int, latencyMs int, success bool) {
	lbl := []string{norm(provider), norm(model)}
	aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
	aiTokensTotal.WithLabelValues(lbl...).Add(float64(tokensTotal))
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncStageFailure(agent, kind string) {
	aiStageFailures.WithLabelValues(norm(agent), norm(kind)).Inc()
}

func IncPacingWait(provider, model string) {
	aiPacingWaits.WithLabelValues(norm(provider), norm(model)).Inc()
}
