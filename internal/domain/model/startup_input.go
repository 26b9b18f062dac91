package model

import (
	"fmt"
	"strings"
)

// StartupInput mirrors the intake form. JSON tags match the form field names.
type StartupInput struct {
	StartupName          string   `json:"startupName"`
	Industry             string   `json:"industry"`
	TargetMarket         string   `json:"targetMarket"`
	Geography            string   `json:"geography"`
	TeamSize             int      `json:"teamSize"`
	ProductStage         string   `json:"productStage"`
	MonthlyRevenue       float64  `json:"monthlyRevenue"`
	GrowthRate           string   `json:"growthRate"`
	TractionSummary      string   `json:"tractionSummary"`
	BusinessModel        string   `json:"businessModel"`
	FundingGoal          *float64 `json:"fundingGoal,omitempty"`
	MainFinancialConcern string   `json:"mainFinancialConcern"`
}

var (
	validTargetMarkets = map[string]bool{"B2B": true, "B2C": true, "B2B2C": true}
	validProductStages = map[string]bool{"Idea": true, "MVP": true, "Beta": true, "Revenue": true, "Scaling": true}
)

// DefaultStartupInput seeds the form for a free-text idea. Callers overlay
// explicit overrides on top before validating.
func DefaultStartupInput(idea string) StartupInput {
	traction := idea
	if len(traction) > 200 {
		traction = traction[:200]
	}
	return StartupInput{
		StartupName:          "User Startup",
		Industry:             "General",
		TargetMarket:         "B2B",
		Geography:            "United States",
		TeamSize:             3,
		ProductStage:         "MVP",
		MonthlyRevenue:       0,
		TractionSummary:      traction,
		BusinessModel:        "Subscription",
		MainFinancialConcern: idea,
	}
}

func (in *StartupInput) Validate() error {
	name := strings.TrimSpace(in.StartupName)
	if name == "" || len(name) > 200 {
		return fmt.Errorf("startupName must be 1..200 characters")
	}
	if strings.TrimSpace(in.Industry) == "" {
		return fmt.Errorf("industry is required")
	}
	if !validTargetMarkets[in.TargetMarket] {
		return fmt.Errorf("targetMarket must be one of B2B, B2C, B2B2C")
	}
	if strings.TrimSpace(in.Geography) == "" {
		return fmt.Errorf("geography is required")
	}
	if in.TeamSize < 0 || in.TeamSize > 10000 {
		return fmt.Errorf("teamSize must be 0..10000")
	}
	if !validProductStages[in.ProductStage] {
		return fmt.Errorf("productStage must be one of Idea, MVP, Beta, Revenue, Scaling")
	}
	if in.MonthlyRevenue < 0 {
		return fmt.Errorf("monthlyRevenue must be >= 0")
	}
	if strings.TrimSpace(in.BusinessModel) == "" {
		return fmt.Errorf("businessModel is required")
	}
	if in.FundingGoal != nil && *in.FundingGoal < 0 {
		return fmt.Errorf("fundingGoal must be >= 0")
	}
	if strings.TrimSpace(in.MainFinancialConcern) == "" {
		return fmt.Errorf("mainFinancialConcern is required")
	}
	return nil
}

// Map renders the input as a generic map for the chain context. Keys match
// the JSON tags so prompts and fragments share one vocabulary.
func (in *StartupInput) Map() map[string]any {
	m := map[string]any{
		"startupName":          in.StartupName,
		"industry":             in.Industry,
		"targetMarket":         in.TargetMarket,
		"geography":            in.Geography,
		"teamSize":             in.TeamSize,
		"productStage":         in.ProductStage,
		"monthlyRevenue":       in.MonthlyRevenue,
		"growthRate":           in.GrowthRate,
		"tractionSummary":      in.TractionSummary,
		"businessModel":        in.BusinessModel,
		"mainFinancialConcern": in.MainFinancialConcern,
	}
	if in.FundingGoal != nil {
		m["fundingGoal"] = *in.FundingGoal
	}
	return m
}
