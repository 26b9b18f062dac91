// File: internal/pipeline/finance.go
package pipeline

import (
	"fmt"

	"finiq-ai-pipeline/internal/domain/model"
	"finiq-ai-pipeline/internal/domain/ports/adapter"
)

// Agent names double as the fragment keys in the accumulated context.
const (
	AgentEnrichment        = "enrichment"
	AgentFundingStage      = "funding_stage"
	AgentRaiseAmount       = "raise_amount"
	AgentInvestorType      = "investor_type"
	AgentRunway            = "runway"
	AgentFinancialPriority = "financial_priority"
	AgentNarrative         = "narrative"
	AgentReview            = "review"
)

// FinanceChain assembles the five-stage strategy chain. Temperatures and
// token budgets are tuned per stage: classification runs cold,
// prioritization warmer.
func FinanceChain(client adapter.ModelClient) []Agent {
	return []Agent{
		NewModelAgent(AgentFundingStage, client, 0.3, 1024, fundingStagePrompt,
			"funding_stage", "confidence", "rationale"),
		NewModelAgent(AgentRaiseAmount, client, 0.4, 1536, raiseAmountPrompt,
			"recommended_amount", "rationale"),
		NewModelAgent(AgentInvestorType, client, 0.5, 1536, investorTypePrompt,
			"primary_investor_type", "rationale"),
		NewModelAgent(AgentRunway, client, 0.3, 1536, runwayPrompt,
			"estimated_runway_months", "monthly_burn_rate"),
		NewModelAgent(AgentFinancialPriority, client, 0.6, 2048, financialPriorityPrompt,
			"priorities"),
	}
}

// WithServiceStages surrounds the core chain with the configured downstream
// stages. A nil stage stays out of the chain.
func WithServiceStages(core []Agent, enrich, write, review Agent) []Agent {
	out := make([]Agent, 0, len(core)+3)
	if enrich != nil {
		out = append(out, enrich)
	}
	out = append(out, core...)
	if write != nil {
		out = append(out, write)
	}
	if review != nil {
		out = append(out, review)
	}
	return out
}

// SeedContext builds the initial chain context for a blueprint.
func SeedContext(bp *model.Blueprint) Context {
	return Context{
		"input": bp.Input.Map(),
		"idea":  bp.Idea,
	}
}

func fragment(c Context, key string) map[string]any {
	if m, ok := c[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// BuildStrategy assembles the consolidated report from a completed chain
// context.
func BuildStrategy(c Context, meta model.StrategyMetadata) *model.FinanceStrategy {
	in := inputOf(c)
	s := &model.FinanceStrategy{
		StartupName:       strOr(in, "startupName", "N/A"),
		FundingStage:      fragment(c, AgentFundingStage),
		RaiseAmount:       fragment(c, AgentRaiseAmount),
		InvestorType:      fragment(c, AgentInvestorType),
		Runway:            fragment(c, AgentRunway),
		FinancialPriority: fragment(c, AgentFinancialPriority),
		Summary:           Summary(c),
		Metadata:          meta,
	}
	if frag, ok := c[AgentEnrichment].(map[string]any); ok {
		s.Enrichment = frag
	}
	if frag, ok := c[AgentNarrative].(map[string]any); ok {
		s.Narrative = frag
	}
	if frag, ok := c[AgentReview].(map[string]any); ok {
		s.Review = frag
	}
	return s
}

// Summary builds the headline sentence from the key fragment fields.
func Summary(c Context) string {
	name := strOr(inputOf(c), "startupName", "N/A")
	stage := fragmentField(c, AgentFundingStage, "funding_stage", "N/A")
	amount := fragmentField(c, AgentRaiseAmount, "recommended_amount", "N/A")
	investor := fragmentField(c, AgentInvestorType, "primary_investor_type", "N/A")
	months := fragmentField(c, AgentRunway, "estimated_runway_months", "N/A")

	return fmt.Sprintf("Based on the analysis, %s should target %s stage funding of %s from %s. "+
		"This will provide approximately %s months of runway to achieve key milestones.",
		name, stage, amount, investor, months)
}
