package model

import "time"

// FinanceStrategy is the consolidated report assembled from the agent chain.
// Fragment values stay loosely typed: they are model-produced JSON objects
// whose exact keys belong to the prompt contracts, not to this package.
type FinanceStrategy struct {
	StartupName       string           `json:"startup_name"`
	FundingStage      map[string]any   `json:"funding_stage"`
	RaiseAmount       map[string]any   `json:"raise_amount"`
	InvestorType      map[string]any   `json:"investor_type"`
	Runway            map[string]any   `json:"runway"`
	FinancialPriority map[string]any   `json:"financial_priority"`
	Enrichment        map[string]any   `json:"enrichment,omitempty"`
	Narrative         map[string]any   `json:"narrative,omitempty"`
	Review            map[string]any   `json:"review,omitempty"`
	Summary           string           `json:"summary"`
	Metadata          StrategyMetadata `json:"metadata"`
}

type StrategyMetadata struct {
	ElapsedSeconds float64       `json:"execution_time_seconds"`
	GeneratedAt    time.Time     `json:"timestamp"`
	AgentsExecuted int           `json:"agents_executed"`
	TokenEstimate  int           `json:"token_estimate"`
	Stages         []StageResult `json:"execution_log"`
}

// StageResult records one agent execution for the strategy's audit trail.
type StageResult struct {
	Agent      string    `json:"agent"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	OutputKeys []string  `json:"output_keys,omitempty"`
	Error      string    `json:"error,omitempty"`
}
