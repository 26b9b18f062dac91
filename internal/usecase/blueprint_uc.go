// File: internal/usecase/blueprint_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"finiq-ai-pipeline/internal/domain"
	"finiq-ai-pipeline/internal/domain/model"
	"finiq-ai-pipeline/internal/domain/ports/repository"
	ports "finiq-ai-pipeline/internal/domain/ports/usecase"
	"finiq-ai-pipeline/internal/infra/logging"
)

// Compile-time check
var _ BlueprintService = (*blueprintUC)(nil)

// BlueprintService is the public generation surface: create a blueprint
// and kick off its strategy job, then poll by job or blueprint ID.
type BlueprintService interface {
	Create(ctx context.Context, userID, idea string, overrides json.RawMessage) (*model.Blueprint, *model.Job, error)
	Regenerate(ctx context.Context, blueprintID string) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Blueprint, error)
	Job(ctx context.Context, jobID string) (*model.Job, error)
	JobForBlueprint(ctx context.Context, blueprintID string) (*model.Job, error)
	RecentJobs(ctx context.Context, limit int) []*model.Job
}

type blueprintUC struct {
	repo  repository.BlueprintRepository
	jobs  ports.JobProcessor
	cache CacheService
	now   func() time.Time
	log   zerolog.Logger
}

func NewBlueprintService(repo repository.BlueprintRepository, jobs ports.JobProcessor, cache CacheService, logger *zerolog.Logger) *blueprintUC {
	return &blueprintUC{
		repo:  repo,
		jobs:  jobs,
		cache: cache,
		now:   time.Now,
		log:   logger.With().Str("component", "blueprint").Logger(),
	}
}

// Create validates the intake, persists the blueprint and enqueues its
// generation job. Overrides are raw JSON so only fields the caller actually
// sent replace the idea-derived defaults.
func (uc *blueprintUC) Create(ctx context.Context, userID, idea string, overrides json.RawMessage) (*model.Blueprint, *model.Job, error) {
	defer logging.TraceDuration(&uc.log, "BlueprintService.Create")()

	idea = strings.TrimSpace(idea)
	if idea == "" {
		return nil, nil, fmt.Errorf("%w: idea is required", domain.ErrInvalidArgument)
	}
	if userID = strings.TrimSpace(userID); userID == "" {
		userID = "anonymous"
	}

	input := model.DefaultStartupInput(idea)
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &input); err != nil {
			return nil, nil, fmt.Errorf("%w: malformed input: %v", domain.ErrInvalidArgument, err)
		}
	}
	if err := input.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	bp := model.NewBlueprint(uuid.NewString(), userID, idea, input, uc.now())
	bp.Status = model.BlueprintStatusGenerating
	if err := uc.repo.Save(ctx, repository.NoTX, bp); err != nil {
		return nil, nil, err
	}

	job, err := uc.jobs.Enqueue(ctx, bp)
	if err != nil {
		// Fresh ID, so only queue pressure can land here.
		bp.Status = model.BlueprintStatusDraft
		if saveErr := uc.repo.Save(ctx, repository.NoTX, bp); saveErr != nil {
			uc.log.Error().Err(saveErr).Str("blueprint_id", bp.ID).Msg("rollback save failed")
		}
		return nil, nil, err
	}

	uc.log.Info().Str("blueprint_id", bp.ID).Str("job_id", job.ID).Str("user_id", userID).Msg("blueprint created")
	return bp.Clone(), job, nil
}

// Regenerate enqueues a fresh job for an existing blueprint. At most one
// live job per blueprint: a held lease surfaces as ErrGenerationInProgress.
func (uc *blueprintUC) Regenerate(ctx context.Context, blueprintID string) (*model.Job, error) {
	bp, err := uc.repo.FindByID(ctx, blueprintID)
	if err != nil {
		return nil, err
	}

	prev := bp.Status
	bp.Status = model.BlueprintStatusGenerating
	bp.UpdatedAt = uc.now()
	if err := uc.repo.Save(ctx, repository.NoTX, bp); err != nil {
		return nil, err
	}

	job, err := uc.jobs.Enqueue(ctx, bp)
	if err != nil {
		bp.Status = prev
		if saveErr := uc.repo.Save(ctx, repository.NoTX, bp); saveErr != nil {
			uc.log.Error().Err(saveErr).Str("blueprint_id", bp.ID).Msg("rollback save failed")
		}
		return nil, err
	}

	uc.log.Info().Str("blueprint_id", blueprintID).Str("job_id", job.ID).Msg("regeneration enqueued")
	return job, nil
}

// Get returns the blueprint record, filling a missing strategy from the
// cache when a completed one is available there.
func (uc *blueprintUC) Get(ctx context.Context, id string) (*model.Blueprint, error) {
	bp, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bp.Strategy == nil && bp.Status == model.BlueprintStatusReady && uc.cache != nil {
		if s, cacheErr := uc.cache.GetStrategy(ctx, id); cacheErr == nil {
			bp.Strategy = s
		}
	}
	return bp, nil
}

func (uc *blueprintUC) Job(ctx context.Context, jobID string) (*model.Job, error) {
	return uc.jobs.Job(ctx, jobID)
}

func (uc *blueprintUC) JobForBlueprint(ctx context.Context, blueprintID string) (*model.Job, error) {
	return uc.jobs.JobForBlueprint(ctx, blueprintID)
}

func (uc *blueprintUC) RecentJobs(ctx context.Context, limit int) []*model.Job {
	return uc.jobs.List(ctx, limit)
}
