// File: internal/infra/adapters/ai/noop_ai.go
package ai

import (
	"context"
	"strings"
	"time"

	"finiq-ai-pipeline/internal/domain/ports/adapter"
)

var _ adapter.ModelClient = (*NoopClient)(nil)

// NoopClient serves canned chain fragments for dev mode and tests, so the
// whole pipeline runs without provider credentials. Replies are picked by
// sniffing the prompt for each advisor role.
type NoopClient struct {
	delay time.Duration
}

func NewNoopClient(delay time.Duration) *NoopClient {
	return &NoopClient{delay: delay}
}

func (n *NoopClient) Model() string { return "noop" }

const (
	noopFundingStage = `{"funding_stage": "Seed", "confidence": "high", "rationale": "MVP shipped with early traction and a small team, which maps to a seed round profile."}`

	noopRaiseAmount = "Here is the recommendation:\n```json\n" +
		`{"recommended_amount": "$750K", "range_minimum": "$500K", "range_maximum": "$1M", "rationale": "Covers 18 months of runway plus two key hires at the current burn."}` +
		"\n```"

	noopInvestorType = `{"primary_investor_type": "Angel Investors", "secondary_investor_type": "Seed VCs", "rationale": "Round size and stage fit angel checks with a seed fund lead."}`

	noopRunway = `{"estimated_runway_months": 18, "monthly_burn_rate": "$40K", "rationale": "Raise divided by projected burn after planned hires."}`

	noopPriorities = `{"priorities": ["Close the seed round", "Hire a founding engineer", "Reach $10K MRR", "Set up financial reporting"], "rationale": "Sequence funding before spend commitments."}`
)

func (n *NoopClient) reply(prompt string) string {
	switch {
	case strings.Contains(prompt, "determine the most appropriate funding stage"):
		return noopFundingStage
	case strings.Contains(prompt, "Recommend the ideal funding amount"):
		return noopRaiseAmount
	case strings.Contains(prompt, "Identify the best investor types"):
		return noopInvestorType
	case strings.Contains(prompt, "Calculate expected runway"):
		return noopRunway
	case strings.Contains(prompt, "financial prioritization"):
		return noopPriorities
	default:
		return `{"note": "noop reply"}`
	}
}

func (n *NoopClient) Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	text, _, err := n.CompleteWithUsage(ctx, prompt, temperature, maxTokens)
	return text, err
}

func (n *NoopClient) CompleteWithUsage(ctx context.Context, prompt string, _ float32, _ int) (string, adapter.Usage, error) {
	if n.delay > 0 {
		t := time.NewTimer(n.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", adapter.Usage{}, ctx.Err()
		case <-t.C:
		}
	}
	text := n.reply(prompt)
	return text, EstimateUsage(prompt, text), nil
}
