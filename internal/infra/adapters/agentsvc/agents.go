// File: internal/infra/adapters/agentsvc/agents.go
package agentsvc

import (
	"context"

	"finiq-ai-pipeline/internal/pipeline"
)

// financeFragments are the chain keys the writer treats as structured analysis.
var financeFragments = []string{
	pipeline.AgentFundingStage,
	pipeline.AgentRaiseAmount,
	pipeline.AgentInvestorType,
	pipeline.AgentRunway,
	pipeline.AgentFinancialPriority,
}

// EnrichmentAgent wraps the retriever service as the opening chain stage.
func EnrichmentAgent(c *Client) pipeline.Agent {
	return pipeline.NewServiceAgent(pipeline.AgentEnrichment, func(ctx context.Context, pc pipeline.Context) (pipeline.Fragment, error) {
		idea, _ := pc["idea"].(string)
		return c.Enrich(ctx, idea)
	})
}

// NarrativeAgent wraps the writer service. It runs after the finance
// stages and sees their fragments as structured analysis.
func NarrativeAgent(c *Client) pipeline.Agent {
	return pipeline.NewServiceAgent(pipeline.AgentNarrative, func(ctx context.Context, pc pipeline.Context) (pipeline.Fragment, error) {
		idea, _ := pc["idea"].(string)
		analysis := make(map[string]any, len(financeFragments))
		for _, k := range financeFragments {
			if v, ok := pc[k]; ok {
				analysis[k] = v
			}
		}
		return c.Write(ctx, idea, analysis)
	})
}

// ReviewAgent wraps the reviewer service as the closing stage.
func ReviewAgent(c *Client) pipeline.Agent {
	return pipeline.NewServiceAgent(pipeline.AgentReview, func(ctx context.Context, pc pipeline.Context) (pipeline.Fragment, error) {
		idea, _ := pc["idea"].(string)
		writerOut, _ := pc[pipeline.AgentNarrative].(map[string]any)
		return c.Review(ctx, writerOut, idea)
	})
}
