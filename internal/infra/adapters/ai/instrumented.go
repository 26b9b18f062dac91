// File: internal/infra/adapters/ai/instrumented.go
package ai

import (
	"context"
	"time"

	"finiq-ai-pipeline/internal/domain/ports/adapter"
	"finiq-ai-pipeline/internal/infra/metrics"
)

var _ adapter.ModelClient = (*InstrumentedClient)(nil)

// InstrumentedClient records latency and token usage for every call.
// When the provider does not report usage the counts are estimated
// from the request and response text.
type InstrumentedClient struct {
	inner    adapter.ModelClient
	provider string
}

func NewInstrumentedClient(inner adapter.ModelClient, provider string) *InstrumentedClient {
	return &InstrumentedClient{inner: inner, provider: provider}
}

func (i *InstrumentedClient) Model() string { return i.inner.Model() }

func (i *InstrumentedClient) Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	text, _, err := i.CompleteWithUsage(ctx, prompt, temperature, maxTokens)
	return text, err
}

func (i *InstrumentedClient) CompleteWithUsage(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, adapter.Usage, error) {
	start := time.Now()
	text, usage, err := i.inner.CompleteWithUsage(ctx, prompt, temperature, maxTokens)
	latency := int(time.Since(start).Milliseconds())

	if err == nil && usage.TotalTokens == 0 {
		usage = EstimateUsage(prompt, text)
	}
	metrics.ObserveModelUsage(i.provider, i.inner.Model(),
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens,
		latency, err == nil)
	return text, usage, err
}
