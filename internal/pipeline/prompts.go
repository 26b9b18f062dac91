// File: internal/pipeline/prompts.go
package pipeline

import "fmt"

// Prompt builders for the finance chain. Each renders the startup profile
// plus whatever earlier fragments the stage depends on, and pins the output
// to a canonical JSON shape. The shapes are a contract with RequireKeys in
// the agents; change them together.

func inputOf(c Context) map[string]any {
	if m, ok := c["input"].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func strOr(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return fallback
}

// fragmentField reads one field out of an earlier agent's fragment.
func fragmentField(c Context, fragKey, field, fallback string) string {
	frag, ok := c[fragKey].(map[string]any)
	if !ok {
		return fallback
	}
	return strOr(frag, field, fallback)
}

func fundingStagePrompt(c Context) string {
	in := inputOf(c)
	return fmt.Sprintf(`You are a senior startup finance advisor specializing in funding strategies.

**Your Role:** Analyze the startup profile and determine the most appropriate funding stage.

**Startup Profile:**
- Name: %s
- Industry: %s
- Target Market: %s
- Geography: %s
- Team Size: %s
- Product Stage: %s
- Monthly Revenue: $%s
- Growth Rate: %s
- Traction: %s
- Business Model: %s
- Funding Goal: $%s

**Task:** Determine the funding stage this startup should target.

**Available Stages:**
- Idea Stage (no product yet)
- Pre-Seed (MVP in development, no revenue)
- Seed (product launched, early traction)
- Series A (product-market fit, scaling)
- Series B+ (established revenue, expansion)
- Bootstrapped/Profitable (no external funding needed)

**Output Format (JSON only):**
{
  "funding_stage": "one of the stages above",
  "confidence": "high/medium/low",
  "rationale": "2-3 sentence explanation based on product stage, revenue, and traction",
  "stage_characteristics": "key indicators that led to this recommendation"
}

Return ONLY valid JSON, no markdown or extra text.`,
		strOr(in, "startupName", "N/A"),
		strOr(in, "industry", "N/A"),
		strOr(in, "targetMarket", "N/A"),
		strOr(in, "geography", "N/A"),
		strOr(in, "teamSize", "0"),
		strOr(in, "productStage", "N/A"),
		strOr(in, "monthlyRevenue", "0"),
		strOr(in, "growthRate", "N/A"),
		strOr(in, "tractionSummary", "N/A"),
		strOr(in, "businessModel", "N/A"),
		strOr(in, "fundingGoal", "Not specified"),
	)
}

func raiseAmountPrompt(c Context) string {
	in := inputOf(c)
	return fmt.Sprintf(`You are a startup CFO advisor specializing in fundraising strategy.

**Your Role:** Recommend the ideal funding amount to raise.

**Startup Profile:**
- Industry: %s
- Target Market: %s
- Team Size: %s
- Monthly Revenue: $%s
- Funding Stage: %s
- Funding Goal (user input): $%s
- Main Financial Concern: %s

**Task:** Calculate the recommended raise amount based on:
1. Typical range for this funding stage
2. Team size and hiring needs
3. Industry capital requirements
4. Runway target (18-24 months typical)
5. User's stated goal (if provided)

**Output Format (JSON only):**
{
  "recommended_amount": "e.g., $500K-$750K",
  "minimum_viable": "lowest amount that makes sense",
  "optimal_amount": "ideal amount for 18-24mo runway",
  "rationale": "explanation of calculation",
  "breakdown": {
    "team_expansion": "estimated cost",
    "product_development": "estimated cost",
    "marketing_sales": "estimated cost",
    "operations_overhead": "estimated cost",
    "buffer": "contingency"
  }
}

Return ONLY valid JSON, no markdown or extra text.`,
		strOr(in, "industry", "N/A"),
		strOr(in, "targetMarket", "N/A"),
		strOr(in, "teamSize", "0"),
		strOr(in, "monthlyRevenue", "0"),
		fragmentField(c, AgentFundingStage, "funding_stage", "Seed"),
		strOr(in, "fundingGoal", "Not specified"),
		strOr(in, "mainFinancialConcern", "N/A"),
	)
}

func investorTypePrompt(c Context) string {
	in := inputOf(c)
	return fmt.Sprintf(`You are a startup fundraising strategist with deep investor network knowledge.

**Your Role:** Identify the best investor types for this startup.

**Startup Profile:**
- Industry: %s
- Target Market: %s
- Geography: %s
- Funding Stage: %s
- Raise Amount: %s
- Business Model: %s

**Task:** Recommend investor types that are best suited for this startup.

**Investor Categories:**
- Angel Investors (individual high-net-worth)
- Micro VCs ($50K-$500K checks)
- Seed VCs ($500K-$2M checks)
- Institutional VCs (Series A+)
- Corporate VCs (strategic investors)
- Accelerators (Y Combinator, Techstars, etc.)
- Government Grants/Programs
- Crowdfunding
- Revenue-Based Financing

**Output Format (JSON only):**
{
  "primary_investor_type": "most suitable type",
  "secondary_options": ["alternative type 1", "alternative type 2"],
  "avoid": ["types that don't make sense for this stage/model"],
  "rationale": "why these investors are ideal",
  "target_profile": "specific characteristics to look for in investors",
  "approach_strategy": "how to approach these investors"
}

Return ONLY valid JSON, no markdown or extra text.`,
		strOr(in, "industry", "N/A"),
		strOr(in, "targetMarket", "N/A"),
		strOr(in, "geography", "N/A"),
		fragmentField(c, AgentFundingStage, "funding_stage", "Seed"),
		fragmentField(c, AgentRaiseAmount, "recommended_amount", "$500K"),
		strOr(in, "businessModel", "N/A"),
	)
}

func runwayPrompt(c Context) string {
	in := inputOf(c)
	return fmt.Sprintf(`You are a startup financial planning expert.

**Your Role:** Calculate expected runway and burn rate guidance.

**Startup Profile:**
- Team Size: %s
- Monthly Revenue: $%s
- Industry: %s
- Geography: %s
- Raise Amount: %s
- Main Financial Concern: %s

**Task:** Estimate runway and provide burn rate guidance.

**Consider:**
1. Current team cost (salaries, benefits)
2. Expected hiring based on raise amount
3. Industry-standard operational costs
4. Geography-based cost differences
5. Revenue (if any) offsetting burn
6. Target runway: 18-24 months

**Output Format (JSON only):**
{
  "estimated_runway_months": "12-18",
  "monthly_burn_rate": "$50K-$75K",
  "assumptions": {
    "team_costs": "breakdown",
    "operational_expenses": "breakdown",
    "growth_investments": "breakdown"
  },
  "revenue_impact": "how current/projected revenue affects runway",
  "key_milestones": ["what should be achieved within this runway"],
  "burn_rate_guidance": "advice on managing burn rate"
}

Return ONLY valid JSON, no markdown or extra text.`,
		strOr(in, "teamSize", "0"),
		strOr(in, "monthlyRevenue", "0"),
		strOr(in, "industry", "N/A"),
		strOr(in, "geography", "N/A"),
		fragmentField(c, AgentRaiseAmount, "recommended_amount", "$500K"),
		strOr(in, "mainFinancialConcern", "N/A"),
	)
}

func financialPriorityPrompt(c Context) string {
	in := inputOf(c)
	return fmt.Sprintf(`You are a strategic startup advisor focused on financial prioritization.

**Your Role:** Identify the top 3-5 immediate financial priorities.

**Startup Profile:**
- Industry: %s
- Product Stage: %s
- Team Size: %s
- Monthly Revenue: $%s
- Main Concern: %s

**Previous Agent Outputs:**
- Funding Stage: %s
- Raise Amount: %s
- Investor Type: %s
- Runway: %s

**Task:** Define the top financial priorities for the next 6-12 months.

**Priority Categories:**
- Fundraising activities
- Team expansion/hiring
- Product development investment
- Marketing & customer acquisition
- Sales team & GTM strategy
- Infrastructure & operations
- Legal & compliance
- Cash flow management
- Unit economics optimization

**Output Format (JSON only):**
{
  "priorities": [
    {
      "priority": "Clear action item",
      "importance": "critical/high/medium",
      "rationale": "why this matters now",
      "timeline": "when to address",
      "estimated_cost": "if applicable"
    }
  ],
  "quick_wins": ["easy immediate actions with high impact"],
  "avoid": ["what NOT to spend money on right now"],
  "success_metrics": ["how to measure progress on these priorities"]
}

Return ONLY valid JSON, no markdown or extra text.`,
		strOr(in, "industry", "N/A"),
		strOr(in, "productStage", "N/A"),
		strOr(in, "teamSize", "0"),
		strOr(in, "monthlyRevenue", "0"),
		strOr(in, "mainFinancialConcern", "N/A"),
		fragmentField(c, AgentFundingStage, "funding_stage", "N/A"),
		fragmentField(c, AgentRaiseAmount, "recommended_amount", "N/A"),
		fragmentField(c, AgentInvestorType, "primary_investor_type", "N/A"),
		fragmentField(c, AgentRunway, "estimated_runway_months", "N/A"),
	)
}
