// File: internal/infra/adapters/ai/tokens.go
package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"finiq-ai-pipeline/internal/domain/ports/adapter"
)

var (
	encOnce sync.Once
	encoder *tiktoken.Tiktoken
)

// countTokens uses the cl100k_base encoding shared by current chat models.
// The encoding is fetched lazily; if it cannot be loaded (offline hosts)
// we fall back to the rough four-bytes-per-token rule.
func countTokens(text string) int {
	encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoder = enc
		}
	})
	if encoder == nil {
		return len(text) / 4
	}
	return len(encoder.Encode(text, nil, nil))
}

// EstimateUsage fills in token counts for providers that do not report them.
func EstimateUsage(prompt, completion string) adapter.Usage {
	in := countTokens(prompt)
	out := countTokens(completion)
	return adapter.Usage{
		PromptTokens:     in,
		CompletionTokens: out,
		TotalTokens:      in + out,
	}
}
