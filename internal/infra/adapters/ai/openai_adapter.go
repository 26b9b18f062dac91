// File: internal/infra/adapters/ai/openai_adapter.go
package ai

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"finiq-ai-pipeline/internal/domain/ports/adapter"
)

var _ adapter.ModelClient = (*OpenAIAdapter)(nil)

// OpenAIAdapter is the fallback provider for chain completions.
type OpenAIAdapter struct {
	client openai.Client
	model  string
}

func NewOpenAIAdapter(apiKey, model string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIAdapter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (o *OpenAIAdapter) Model() string { return o.model }

func (o *OpenAIAdapter) Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	text, _, err := o.CompleteWithUsage(ctx, prompt, temperature, maxTokens)
	return text, err
}

func (o *OpenAIAdapter) CompleteWithUsage(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, adapter.Usage, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(float64(temperature)),
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", adapter.Usage{}, nil
	}
	u := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return resp.Choices[0].Message.Content, u, nil
}
