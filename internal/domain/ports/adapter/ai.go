package adapter

import "context"

// Usage for a single completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ModelClient is the port for single-turn LLM completions. Implementations
// must honor ctx cancellation and return the raw completion text untouched;
// JSON extraction is the caller's concern.
type ModelClient interface {
	// Complete returns only the raw model text.
	Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error)

	// CompleteWithUsage returns text plus usage as reported by the provider
	// (estimated when exact counts are not available).
	CompleteWithUsage(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, Usage, error)

	// Model names the configured provider model, e.g. "gemini-2.0-flash".
	Model() string
}
