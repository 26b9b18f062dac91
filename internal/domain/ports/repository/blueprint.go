package repository

import (
	"context"

	"finiq-ai-pipeline/internal/domain/model"
)

type BlueprintRepository interface {
	Save(ctx context.Context, tx Tx, bp *model.Blueprint) error
	FindByID(ctx context.Context, id string) (*model.Blueprint, error)
	// ListIDs returns the most recently updated blueprint IDs, newest first.
	ListIDs(ctx context.Context, limit int) ([]string, error)
}
