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

var _ repository.JobArchive = (*jobArchiveRepo)(nil)

// jobArchiveRepo stores terminal job snapshots. The processor writes here
// when a job completes or fails, so status queries keep working after the
// in-memory retention sweep drops the live record.
type jobArchiveRepo struct {
	pool *pgxpool.Pool
}

func NewJobArchiveRepo(pool *pgxpool.Pool) *jobArchiveRepo {
	return &jobArchiveRepo{pool: pool}
}

func (r *jobArchiveRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	var result, partial []byte
	var err error
	if job.Result != nil {
		if result, err = json.Marshal(job.Result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	}
	if job.Partial != nil {
		if partial, err = json.Marshal(job.Partial); err != nil {
			return fmt.Errorf("encode partial: %w", err)
		}
	}

	const q = `
INSERT INTO job_archive (id, blueprint_id, status, progress, current_step, error, result, partial, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  progress = EXCLUDED.progress,
  current_step = EXCLUDED.current_step,
  error = EXCLUDED.error,
  result = EXCLUDED.result,
  partial = EXCLUDED.partial,
  updated_at = EXCLUDED.updated_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, job.BlueprintID, string(job.Status), job.Progress, job.CurrentStep,
		job.Error, result, partial, job.CreatedAt, job.UpdatedAt)
	return err
}

const jobColumns = `id, blueprint_id, status, progress, current_step, error, result, partial, created_at, updated_at`

func (r *jobArchiveRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM job_archive WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, nil, q, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobArchiveRepo) FindLatestByBlueprint(ctx context.Context, blueprintID string) (*model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM job_archive WHERE blueprint_id = $1 ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, nil, q, blueprintID)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		job     model.Job
		status  string
		result  []byte
		partial []byte
	)
	err := row.Scan(&job.ID, &job.BlueprintID, &status, &job.Progress, &job.CurrentStep,
		&job.Error, &result, &partial, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Status = model.JobStatus(status)
	if len(result) > 0 {
		job.Result = &model.FinanceStrategy{}
		if err := json.Unmarshal(result, job.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	if len(partial) > 0 {
		if err := json.Unmarshal(partial, &job.Partial); err != nil {
			return nil, fmt.Errorf("decode partial: %w", err)
		}
	}
	return &job, nil
}
