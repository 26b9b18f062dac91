// File: internal/pipeline/runner.go
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"finiq-ai-pipeline/internal/infra/logging"
)

// ProgressFunc receives step updates as the chain advances. pct is an
// overall completion estimate and never decreases within a run.
type ProgressFunc func(step string, pct int)

// Runner executes agent chains strictly sequentially: each agent sees the
// fragments of every agent before it. One Runner is shared by all jobs;
// per-run state stays on the stack.
type Runner struct {
	agentTimeout time.Duration
	log          zerolog.Logger
}

func NewRunner(agentTimeout time.Duration, logger *zerolog.Logger) *Runner {
	return &Runner{
		agentTimeout: agentTimeout,
		log:          logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run threads the accumulated context through agents in order. The returned
// Context reflects every fragment merged before the first failure; callers
// keep it for diagnostics even when err != nil. Agents after a failed stage
// never run.
func (r *Runner) Run(ctx context.Context, agents []Agent, initial Context, onProgress ProgressFunc) (Context, error) {
	acc := make(Context, len(initial)+len(agents))
	for k, v := range initial {
		acc[k] = v
	}
	if onProgress == nil {
		onProgress = func(string, int) {}
	}

	for i, agent := range agents {
		onProgress(agent.Name(), stepPct(i, len(agents)))
		start := time.Now()

		stageCtx := ctx
		var cancel context.CancelFunc
		if r.agentTimeout > 0 {
			stageCtx, cancel = context.WithTimeout(ctx, r.agentTimeout)
		}
		frag, err := agent.Run(stageCtx, acc)
		if cancel != nil {
			cancel()
		}
		log := logging.With(ctx, &r.log)
		if err != nil {
			log.Error().Err(err).Str("agent", agent.Name()).
				Dur("took", time.Since(start)).Msg("chain stage failed")
			return acc, err
		}

		acc[agent.Name()] = map[string]any(frag)
		log.Debug().Str("agent", agent.Name()).Dur("took", time.Since(start)).
			Int("fields", len(frag)).Msg("chain stage done")
	}

	onProgress("finalizing", 95)
	return acc, nil
}

// stepPct spreads stage starts over 10..95; reaching 100 is the caller's
// call once the result is persisted.
func stepPct(i, total int) int {
	if total <= 0 {
		return 10
	}
	return 10 + (85*i)/total
}
