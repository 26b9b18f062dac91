//go:build !integration

package model

import (
	"strings"
	"testing"
	"time"
)

// --- Job Model Tests ---

func TestNewJob(t *testing.T) {
	t.Run("should create a pending job", func(t *testing.T) {
		now := time.Now()
		job := NewJob("job-1", "bp-1", now)

		if job == nil {
			t.Fatal("expected job to be non-nil, but got nil")
		}
		if job.Status != JobStatusPending {
			t.Errorf("expected status to be pending, but got %s", job.Status)
		}
		if job.Progress != 0 {
			t.Errorf("expected progress to be 0, but got %d", job.Progress)
		}
		if !job.CreatedAt.Equal(now) || !job.UpdatedAt.Equal(now) {
			t.Error("expected both timestamps to equal the creation time")
		}
		if job.Error != "" || job.Result != nil || job.Partial != nil {
			t.Error("expected a fresh job to carry no error, result or partial context")
		}
	})

	t.Run("clone should detach the partial context", func(t *testing.T) {
		job := NewJob("job-1", "bp-1", time.Now())
		job.Partial = map[string]any{"funding_stage": map[string]any{"stage": "Seed"}}

		cp := job.Clone()
		cp.Partial["extra"] = true

		if _, ok := job.Partial["extra"]; ok {
			t.Error("expected mutating the clone's partial context to leave the original untouched")
		}
		if cp.ID != job.ID || cp.BlueprintID != job.BlueprintID {
			t.Errorf("expected clone to keep identity fields, got %s/%s", cp.ID, cp.BlueprintID)
		}
	})
}

func TestJobStatusTerminal(t *testing.T) {
	testCases := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobStatusPending, false},
		{JobStatusProcessing, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
	}
	for _, tc := range testCases {
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Errorf("expected Terminal() for %s to be %v, but got %v", tc.status, tc.terminal, got)
		}
	}
}

// --- Blueprint Model Tests ---

func TestNewBlueprint(t *testing.T) {
	now := time.Now()
	bp := NewBlueprint("bp-1", "user-1", "ai bookkeeping for dentists", DefaultStartupInput("ai bookkeeping for dentists"), now)

	if bp == nil {
		t.Fatal("expected blueprint to be non-nil, but got nil")
	}
	if bp.Status != BlueprintStatusDraft {
		t.Errorf("expected status to be draft, but got %s", bp.Status)
	}
	if bp.Strategy != nil {
		t.Error("expected a new blueprint to have no strategy")
	}
	if bp.UserID != "user-1" {
		t.Errorf("expected user ID to be 'user-1', but got %s", bp.UserID)
	}
	if !bp.CreatedAt.Equal(now) {
		t.Error("expected CreatedAt to equal the creation time")
	}
}

// --- StartupInput Tests ---

func TestDefaultStartupInput(t *testing.T) {
	t.Run("should seed the form from the idea", func(t *testing.T) {
		in := DefaultStartupInput("cashflow forecasting for cafes")

		if in.MainFinancialConcern != "cashflow forecasting for cafes" {
			t.Errorf("expected the idea to become the main concern, but got %q", in.MainFinancialConcern)
		}
		if in.TractionSummary != "cashflow forecasting for cafes" {
			t.Errorf("expected the idea to seed the traction summary, but got %q", in.TractionSummary)
		}
		if in.TargetMarket != "B2B" || in.ProductStage != "MVP" {
			t.Errorf("expected B2B/MVP defaults, but got %s/%s", in.TargetMarket, in.ProductStage)
		}
		if err := in.Validate(); err != nil {
			t.Errorf("expected the seeded form to validate, but got: %v", err)
		}
	})

	t.Run("should truncate long ideas in the traction summary", func(t *testing.T) {
		idea := strings.Repeat("x", 500)
		in := DefaultStartupInput(idea)
		if len(in.TractionSummary) != 200 {
			t.Errorf("expected traction summary to be cut to 200 characters, but got %d", len(in.TractionSummary))
		}
		if in.MainFinancialConcern != idea {
			t.Error("expected the main concern to keep the full idea")
		}
	})
}

func TestStartupInputValidate(t *testing.T) {
	valid := func() StartupInput { return DefaultStartupInput("a subscription box for plants") }

	t.Run("should reject invalid forms", func(t *testing.T) {
		testCases := []struct {
			name   string
			mutate func(*StartupInput)
		}{
			{"empty startup name", func(in *StartupInput) { in.StartupName = "  " }},
			{"overlong startup name", func(in *StartupInput) { in.StartupName = strings.Repeat("n", 201) }},
			{"empty industry", func(in *StartupInput) { in.Industry = "" }},
			{"unknown target market", func(in *StartupInput) { in.TargetMarket = "B2X" }},
			{"empty geography", func(in *StartupInput) { in.Geography = "" }},
			{"negative team size", func(in *StartupInput) { in.TeamSize = -1 }},
			{"huge team size", func(in *StartupInput) { in.TeamSize = 10001 }},
			{"unknown product stage", func(in *StartupInput) { in.ProductStage = "Launched" }},
			{"negative revenue", func(in *StartupInput) { in.MonthlyRevenue = -10 }},
			{"empty business model", func(in *StartupInput) { in.BusinessModel = "" }},
			{"negative funding goal", func(in *StartupInput) { g := -1.0; in.FundingGoal = &g }},
			{"empty main concern", func(in *StartupInput) { in.MainFinancialConcern = " " }},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				in := valid()
				tc.mutate(&in)
				if err := in.Validate(); err == nil {
					t.Fatalf("expected an error for %s, but got nil", tc.name)
				}
			})
		}
	})

	t.Run("should accept boundary values", func(t *testing.T) {
		in := valid()
		in.TeamSize = 0
		in.MonthlyRevenue = 0
		g := 0.0
		in.FundingGoal = &g
		if err := in.Validate(); err != nil {
			t.Errorf("expected zero boundaries to validate, but got: %v", err)
		}
	})
}

func TestStartupInputMap(t *testing.T) {
	in := DefaultStartupInput("an idea")

	m := in.Map()
	if _, ok := m["fundingGoal"]; ok {
		t.Error("expected fundingGoal to be absent when unset")
	}
	if m["targetMarket"] != "B2B" {
		t.Errorf("expected map keys to match JSON tags, got targetMarket=%v", m["targetMarket"])
	}

	g := 250000.0
	in.FundingGoal = &g
	m = in.Map()
	if m["fundingGoal"] != 250000.0 {
		t.Errorf("expected fundingGoal to be 250000, but got %v", m["fundingGoal"])
	}
}
