// File: internal/infra/adapters/ai/paced_client.go
package ai

import (
	"context"
	"time"

	"finiq-ai-pipeline/internal/domain/ports/adapter"
	"finiq-ai-pipeline/internal/infra/metrics"
	"finiq-ai-pipeline/internal/ratelimit"
)

var _ adapter.ModelClient = (*PacedClient)(nil)

// PacedClient spaces provider calls with a sliding-window limiter so a
// drained job queue cannot burst past the vendor quota. Unlike the user
// limiter this one never rejects, it waits for a slot or for the context.
type PacedClient struct {
	inner    adapter.ModelClient
	limiter  *ratelimit.Limiter
	provider string
}

func NewPacedClient(inner adapter.ModelClient, limiter *ratelimit.Limiter, provider string) adapter.ModelClient {
	if limiter == nil {
		return inner
	}
	return &PacedClient{inner: inner, limiter: limiter, provider: provider}
}

func (p *PacedClient) Model() string { return p.inner.Model() }

func (p *PacedClient) wait(ctx context.Context) error {
	for {
		if p.limiter.Allow(p.provider) {
			metrics.IncRateLimit("provider", true)
			return nil
		}
		metrics.IncRateLimit("provider", false)
		metrics.IncPacingWait(p.provider, p.inner.Model())

		d := time.Until(p.limiter.ResetAt(p.provider))
		if d < 10*time.Millisecond {
			d = 10 * time.Millisecond
		}
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (p *PacedClient) Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return p.inner.Complete(ctx, prompt, temperature, maxTokens)
}

func (p *PacedClient) CompleteWithUsage(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, adapter.Usage, error) {
	if err := p.wait(ctx); err != nil {
		return "", adapter.Usage{}, err
	}
	return p.inner.CompleteWithUsage(ctx, prompt, temperature, maxTokens)
}
