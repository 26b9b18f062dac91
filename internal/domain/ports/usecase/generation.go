package usecase

import (
	"context"

	"finiq-ai-pipeline/internal/domain/model"
)

// JobProcessor defines the generation-job operations needed by external
// components like the HTTP layer, without binding them to the worker
// implementation.
type JobProcessor interface {
	Enqueue(ctx context.Context, bp *model.Blueprint) (*model.Job, error)
	Job(ctx context.Context, id string) (*model.Job, error)
	JobForBlueprint(ctx context.Context, blueprintID string) (*model.Job, error)
	List(ctx context.Context, limit int) []*model.Job
}

// StrategyCache is the slice of the cache service the background worker
// needs to publish finished strategies.
type StrategyCache interface {
	StoreStrategy(ctx context.Context, blueprintID string, s *model.FinanceStrategy) error
}
