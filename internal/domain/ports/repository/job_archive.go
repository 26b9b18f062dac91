package repository

import (
	"context"

	"finiq-ai-pipeline/internal/domain/model"
)

// JobArchive persists terminal job snapshots so status queries survive the
// in-memory retention sweep. Live (non-terminal) jobs never reach it.
type JobArchive interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, id string) (*model.Job, error)
	FindLatestByBlueprint(ctx context.Context, blueprintID string) (*model.Job, error)
}
