// File: internal/usecase/blueprint_uc_test.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"finiq-ai-pipeline/internal/domain"
	"finiq-ai-pipeline/internal/domain/model"
	"finiq-ai-pipeline/internal/domain/ports/repository"
	"finiq-ai-pipeline/internal/infra/memory"
)

type fakeJobs struct {
	mu         sync.Mutex
	enqueueErr error
	jobs       map[string]*model.Job
	lastBP     *model.Blueprint
	seq        int
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: map[string]*model.Job{}}
}

func (f *fakeJobs) Enqueue(ctx context.Context, bp *model.Blueprint) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return nil, f.enqueueErr
	}
	f.seq++
	job := model.NewJob(bp.ID+"-job", bp.ID, time.Now())
	f.jobs[job.ID] = job
	f.lastBP = bp
	return job.Clone(), nil
}

func (f *fakeJobs) Job(ctx context.Context, id string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

func (f *fakeJobs) JobForBlueprint(ctx context.Context, blueprintID string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.BlueprintID == blueprintID {
			return job.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeJobs) List(ctx context.Context, limit int) []*model.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Job, 0, len(f.jobs))
	for _, job := range f.jobs {
		out = append(out, job.Clone())
	}
	return out
}

func newTestBlueprintService(t *testing.T) (*blueprintUC, *fakeBlueprintRepo, *fakeJobs) {
	t.Helper()
	repo := newFakeBlueprintRepo()
	jobs := newFakeJobs()
	nop := zerolog.Nop()
	cache := NewCacheService(memory.NewKV(), repo, time.Hour, &nop)
	uc := NewBlueprintService(repo, jobs, cache, &nop)
	return uc, repo, jobs
}

func TestBlueprintCreate(t *testing.T) {
	ctx := context.Background()
	uc, repo, jobs := newTestBlueprintService(t)

	overrides := json.RawMessage(`{"startupName": "LedgerDent", "teamSize": 5, "targetMarket": "B2C"}`)
	bp, job, err := uc.Create(ctx, "user-1", "expense tracking for dental clinics", overrides)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if bp.Status != model.BlueprintStatusGenerating {
		t.Fatalf("status = %s, want generating", bp.Status)
	}
	if job.BlueprintID != bp.ID {
		t.Fatalf("job blueprint = %s, want %s", job.BlueprintID, bp.ID)
	}

	saved, err := repo.FindByID(ctx, bp.ID)
	if err != nil {
		t.Fatalf("saved blueprint missing: %v", err)
	}
	if saved.Input.StartupName != "LedgerDent" || saved.Input.TeamSize != 5 || saved.Input.TargetMarket != "B2C" {
		t.Fatalf("overrides not applied: %+v", saved.Input)
	}
	// Untouched fields keep the idea-derived defaults.
	if saved.Input.Industry != "General" || saved.Input.ProductStage != "MVP" {
		t.Fatalf("defaults lost: %+v", saved.Input)
	}
	if saved.Input.MainFinancialConcern != "expense tracking for dental clinics" {
		t.Fatalf("concern = %q", saved.Input.MainFinancialConcern)
	}
	if jobs.lastBP == nil || jobs.lastBP.ID != bp.ID {
		t.Fatal("job was not enqueued for the new blueprint")
	}
}

func TestBlueprintCreateValidation(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestBlueprintService(t)

	cases := []struct {
		name      string
		idea      string
		overrides string
	}{
		{"blank idea", "   ", ""},
		{"malformed overrides", "an idea", `{"teamSize": "five"}`},
		{"invalid market", "an idea", `{"targetMarket": "B2X"}`},
		{"invalid stage", "an idea", `{"productStage": "Launched"}`},
		{"negative revenue", "an idea", `{"monthlyRevenue": -10}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var raw json.RawMessage
			if tc.overrides != "" {
				raw = json.RawMessage(tc.overrides)
			}
			_, _, err := uc.Create(ctx, "user-1", tc.idea, raw)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Fatalf("Create = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestBlueprintCreateQueueFullRollsBack(t *testing.T) {
	ctx := context.Background()
	uc, repo, jobs := newTestBlueprintService(t)
	jobs.enqueueErr = domain.ErrQueueFull

	_, _, err := uc.Create(ctx, "user-1", "an idea", nil)
	if !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("Create = %v, want ErrQueueFull", err)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, bp := range repo.bps {
		if bp.Status != model.BlueprintStatusDraft {
			t.Fatalf("rolled-back blueprint status = %s, want draft", bp.Status)
		}
	}
}

func TestBlueprintRegenerate(t *testing.T) {
	ctx := context.Background()
	uc, repo, jobs := newTestBlueprintService(t)

	bp := model.NewBlueprint("bp-1", "user-1", "an idea", model.DefaultStartupInput("an idea"), time.Now())
	bp.Status = model.BlueprintStatusReady
	_ = repo.Save(ctx, repository.NoTX, bp)

	job, err := uc.Regenerate(ctx, "bp-1")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if job.BlueprintID != "bp-1" {
		t.Fatalf("job blueprint = %s", job.BlueprintID)
	}
	saved, _ := repo.FindByID(ctx, "bp-1")
	if saved.Status != model.BlueprintStatusGenerating {
		t.Fatalf("status = %s, want generating", saved.Status)
	}

	// A held lease restores the previous status.
	jobs.enqueueErr = domain.ErrGenerationInProgress
	saved.Status = model.BlueprintStatusReady
	_ = repo.Save(ctx, repository.NoTX, saved)

	if _, err := uc.Regenerate(ctx, "bp-1"); !errors.Is(err, domain.ErrGenerationInProgress) {
		t.Fatalf("Regenerate = %v, want ErrGenerationInProgress", err)
	}
	saved, _ = repo.FindByID(ctx, "bp-1")
	if saved.Status != model.BlueprintStatusReady {
		t.Fatalf("status after rollback = %s, want ready", saved.Status)
	}

	if _, err := uc.Regenerate(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Regenerate(missing) = %v, want ErrNotFound", err)
	}
}

func TestBlueprintGetFillsStrategyFromCache(t *testing.T) {
	ctx := context.Background()
	uc, repo, _ := newTestBlueprintService(t)

	bp := model.NewBlueprint("bp-1", "user-1", "an idea", model.DefaultStartupInput("an idea"), time.Now())
	bp.Status = model.BlueprintStatusReady
	_ = repo.Save(ctx, repository.NoTX, bp)
	_ = uc.cache.StoreStrategy(ctx, "bp-1", &model.FinanceStrategy{StartupName: "Cached Co"})

	got, err := uc.Get(ctx, "bp-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Strategy == nil || got.Strategy.StartupName != "Cached Co" {
		t.Fatalf("strategy not filled from cache: %+v", got.Strategy)
	}

	if _, err := uc.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
	}
}
