// File: internal/infra/memory/blueprint_repo.go
package memory

import (
	"context"
	"sort"
	"sync"

	"finiq-ai-pipeline/internal/domain"
	"finiq-ai-pipeline/internal/domain/model"
	"finiq-ai-pipeline/internal/domain/ports/repository"
)

var _ repository.BlueprintRepository = (*BlueprintRepo)(nil)

// BlueprintRepo keeps blueprint records in process memory for dev mode.
// Clones cross the boundary in both directions, so the worker mutating its
// copy never bleeds into a snapshot a reader already holds.
type BlueprintRepo struct {
	mu  sync.RWMutex
	bps map[string]*model.Blueprint
}

func NewBlueprintRepo() *BlueprintRepo {
	return &BlueprintRepo{bps: make(map[string]*model.Blueprint)}
}

func (r *BlueprintRepo) Save(ctx context.Context, _ repository.Tx, bp *model.Blueprint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bps[bp.ID] = bp.Clone()
	return nil
}

func (r *BlueprintRepo) FindByID(ctx context.Context, id string) (*model.Blueprint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bp, ok := r.bps[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return bp.Clone(), nil
}

func (r *BlueprintRepo) ListIDs(ctx context.Context, limit int) ([]string, error) {
	r.mu.RLock()
	all := make([]*model.Blueprint, 0, len(r.bps))
	for _, bp := range r.bps {
		all = append(all, bp)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, k int) bool { return all[i].UpdatedAt.After(all[k].UpdatedAt) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	ids := make([]string, len(all))
	for i, bp := range all {
		ids[i] = bp.ID
	}
	return ids, nil
}
