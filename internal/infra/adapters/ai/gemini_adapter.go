// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"finiq-ai-pipeline/internal/domain/ports/adapter"
)

var _ adapter.ModelClient = (*GeminiAdapter)(nil)

// GeminiAdapter drives single-turn completions through the official SDK.
// The chain sends self-contained prompts, so no chat history is kept.
type GeminiAdapter struct {
	client *genai.Client
	model  string
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, model string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, model: model}, nil
}

func (g *GeminiAdapter) Model() string { return g.model }

func (g *GeminiAdapter) Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	text, _, err := g.CompleteWithUsage(ctx, prompt, temperature, maxTokens)
	return text, err
}

func (g *GeminiAdapter) CompleteWithUsage(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, adapter.Usage, error) {
	temp := temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(maxTokens),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", adapter.Usage{}, err
	}

	text := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		if t := resp.Candidates[0].Content.Parts[0].Text; t != "" {
			text = t
		}
	}
	u := adapter.Usage{}
	if resp != nil && resp.UsageMetadata != nil {
		u.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		u.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		u.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return text, u, nil
}
