// File: internal/infra/adapters/ai/limit_wrapper.go
package ai

import (
	"context"

	"finiq-ai-pipeline/internal/domain/ports/adapter"
)

var _ adapter.ModelClient = (*LimitedClient)(nil)

// LimitedClient bounds in-flight provider calls with a semaphore.
type LimitedClient struct {
	inner adapter.ModelClient
	sem   chan struct{}
}

// NewLimitedClient wraps inner so at most maxConcurrent calls run at once.
// maxConcurrent <= 0 disables the wrapper and returns inner untouched.
func NewLimitedClient(inner adapter.ModelClient, maxConcurrent int) adapter.ModelClient {
	if maxConcurrent <= 0 {
		return inner
	}
	return &LimitedClient{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *LimitedClient) Model() string { return l.inner.Model() }

func (l *LimitedClient) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *LimitedClient) release() { <-l.sem }

func (l *LimitedClient) Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer l.release()
	return l.inner.Complete(ctx, prompt, temperature, maxTokens)
}

func (l *LimitedClient) CompleteWithUsage(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, adapter.Usage, error) {
	if err := l.acquire(ctx); err != nil {
		return "", adapter.Usage{}, err
	}
	defer l.release()
	return l.inner.CompleteWithUsage(ctx, prompt, temperature, maxTokens)
}
