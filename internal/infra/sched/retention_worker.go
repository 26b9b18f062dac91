// File: internal/infra/sched/retention_worker.go
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"finiq-ai-pipeline/internal/infra/memory"
	"finiq-ai-pipeline/internal/infra/worker"
	"finiq-ai-pipeline/internal/ratelimit"
)

// RetentionWorker periodically drops terminal jobs past their retention
// window and prunes backends that only ever grow: idle rate-limit windows
// and expired in-memory cache entries. limiters and kv may be nil.
type RetentionWorker struct {
	interval time.Duration
	proc     *worker.Processor
	limiters []*ratelimit.Limiter
	kv       *memory.KV
	log      zerolog.Logger
}

func NewRetentionWorker(interval time.Duration, proc *worker.Processor, limiters []*ratelimit.Limiter, kv *memory.KV, logger *zerolog.Logger) *RetentionWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RetentionWorker{
		interval: interval,
		proc:     proc,
		limiters: limiters,
		kv:       kv,
		log:      logger.With().Str("component", "retention_worker").Logger(),
	}
}

func (w *RetentionWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting retention worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping retention worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *RetentionWorker) tick(ctx context.Context) {
	swept := w.proc.Sweep(ctx)

	pruned := 0
	for _, l := range w.limiters {
		if l != nil {
			pruned += l.PruneIdle(time.Hour)
		}
	}

	expired := 0
	if w.kv != nil {
		expired = w.kv.Sweep()
	}

	if swept > 0 || pruned > 0 || expired > 0 {
		w.log.Info().
			Int("jobs_swept", swept).
			Int("limiter_identifiers", pruned).
			Int("cache_entries", expired).
			Msg("retention pass done")
	}
}
