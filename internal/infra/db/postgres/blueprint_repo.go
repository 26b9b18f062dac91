package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"finiq-ai-pipeline/internal/domain"
	"finiq-ai-pipeline/internal/domain/model"
	"finiq-ai-pipeline/internal/domain/ports/repository"
)

var _ repository.BlueprintRepository = (*blueprintRepo)(nil)

type blueprintRepo struct {
	pool *pgxpool.Pool
}

func NewBlueprintRepo(pool *pgxpool.Pool) *blueprintRepo {
	return &blueprintRepo{pool: pool}
}

func (r *blueprintRepo) Save(ctx context.Context, tx repository.Tx, bp *model.Blueprint) error {
	input, err := json.Marshal(bp.Input)
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}
	var strategy []byte
	if bp.Strategy != nil {
		if strategy, err = json.Marshal(bp.Strategy); err != nil {
			return fmt.Errorf("encode strategy: %w", err)
		}
	}

	const q = `
INSERT INTO blueprints (id, user_id, idea, input, status, strategy, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
  input = EXCLUDED.input,
  status = EXCLUDED.status,
  strategy = EXCLUDED.strategy,
  updated_at = EXCLUDED.updated_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		bp.ID, bp.UserID, bp.Idea, input, string(bp.Status), strategy, bp.CreatedAt, bp.UpdatedAt)
	return err
}

func (r *blueprintRepo) FindByID(ctx context.Context, id string) (*model.Blueprint, error) {
	const q = `
SELECT id, user_id, idea, input, status, strategy, created_at, updated_at
FROM blueprints
WHERE id = $1;`

	row, err := pickRow(ctx, r.pool, nil, q, id)
	if err != nil {
		return nil, err
	}

	var (
		bp       model.Blueprint
		status   string
		input    []byte
		strategy []byte
	)
	err = row.Scan(&bp.ID, &bp.UserID, &bp.Idea, &input, &status, &strategy, &bp.CreatedAt, &bp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	bp.Status = model.BlueprintStatus(status)
	if err := json.Unmarshal(input, &bp.Input); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if len(strategy) > 0 {
		bp.Strategy = &model.FinanceStrategy{}
		if err := json.Unmarshal(strategy, bp.Strategy); err != nil {
			return nil, fmt.Errorf("decode strategy: %w", err)
		}
	}
	return &bp, nil
}

func (r *blueprintRepo) ListIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `SELECT id FROM blueprints ORDER BY updated_at DESC LIMIT $1;`

	rows, err := pickRows(ctx, r.pool, nil, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
