// File: internal/infra/adapters/ai/fallback.go
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"finiq-ai-pipeline/internal/domain/ports/adapter"
)

var _ adapter.ModelClient = (*FallbackClient)(nil)

// FallbackClient tries the primary provider and, when it errors for a
// reason other than a spent deadline, retries once on the secondary.
// A nil secondary makes it a plain passthrough.
type FallbackClient struct {
	primary   adapter.ModelClient
	secondary adapter.ModelClient
	log       zerolog.Logger
}

func NewFallbackClient(primary, secondary adapter.ModelClient, logger *zerolog.Logger) *FallbackClient {
	return &FallbackClient{
		primary:   primary,
		secondary: secondary,
		log:       logger.With().Str("component", "ai_fallback").Logger(),
	}
}

func (f *FallbackClient) Model() string { return f.primary.Model() }

func (f *FallbackClient) Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	text, _, err := f.CompleteWithUsage(ctx, prompt, temperature, maxTokens)
	return text, err
}

func (f *FallbackClient) CompleteWithUsage(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, adapter.Usage, error) {
	text, usage, err := f.primary.CompleteWithUsage(ctx, prompt, temperature, maxTokens)
	if err == nil || f.secondary == nil {
		return text, usage, err
	}
	// No budget left for a second attempt.
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return "", adapter.Usage{}, err
	}

	f.log.Warn().Err(err).
		Str("primary", f.primary.Model()).
		Str("secondary", f.secondary.Model()).
		Msg("primary provider failed, trying secondary")

	text, usage, err2 := f.secondary.CompleteWithUsage(ctx, prompt, temperature, maxTokens)
	if err2 != nil {
		return "", adapter.Usage{}, fmt.Errorf("both providers failed: %w", err)
	}
	return text, usage, nil
}
