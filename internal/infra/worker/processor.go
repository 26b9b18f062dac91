// File: internal/infra/worker/processor.go
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"finiq-ai-pipeline/internal/domain"
	"finiq-ai-pipeline/internal/domain/model"
	"finiq-ai-pipeline/internal/domain/ports/repository"
	"finiq-ai-pipeline/internal/domain/ports/usecase"
	"finiq-ai-pipeline/internal/infra/logging"
	"finiq-ai-pipeline/internal/infra/metrics"
	"finiq-ai-pipeline/internal/pipeline"
)

// Config carries the processor knobs. Zero values fall back to defaults.
type Config struct {
	QueueSize  int
	JobTimeout time.Duration
	// LeaseTTL bounds the per-blueprint generation lease. Must outlive
	// JobTimeout or a stuck job's lease could be stolen mid-run.
	LeaseTTL  time.Duration
	Retention time.Duration
}

func (c *Config) setDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 5 * time.Minute
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = c.JobTimeout + time.Minute
	}
	if c.Retention <= 0 {
		c.Retention = time.Hour
	}
}

// queued pins the blueprint snapshot a job was created for, so a later
// edit to the blueprint cannot leak into an already-enqueued run.
type queued struct {
	jobID string
	bp    *model.Blueprint
}

// Processor owns the generation job lifecycle: accept, queue, run the
// chain, persist the outcome. Jobs drain strictly one at a time in
// arrival order; a failed run never affects the next one.
type Processor struct {
	cfg    Config
	runner *pipeline.Runner
	agents []pipeline.Agent

	locks      repository.SubjectLock
	blueprints repository.BlueprintRepository
	archive    repository.JobArchive
	tm         repository.TransactionManager
	cache      usecase.StrategyCache

	mu          sync.RWMutex
	jobs        map[string]*model.Job
	byBlueprint map[string]string
	tokens      map[string]string

	queue chan queued

	now   func() time.Time
	newID func() string
	log   zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessor wires the job processor. blueprints, archive and tm may be
// nil when no database is configured; results then live only in memory
// and the strategy cache.
func NewProcessor(
	cfg Config,
	runner *pipeline.Runner,
	agents []pipeline.Agent,
	locks repository.SubjectLock,
	blueprints repository.BlueprintRepository,
	archive repository.JobArchive,
	tm repository.TransactionManager,
	cache usecase.StrategyCache,
	logger *zerolog.Logger,
) *Processor {
	cfg.setDefaults()
	return &Processor{
		cfg:         cfg,
		runner:      runner,
		agents:      agents,
		locks:       locks,
		blueprints:  blueprints,
		archive:     archive,
		tm:          tm,
		cache:       cache,
		jobs:        make(map[string]*model.Job),
		byBlueprint: make(map[string]string),
		tokens:      make(map[string]string),
		queue:       make(chan queued, cfg.QueueSize),
		now:         time.Now,
		newID:       func() string { return ulid.Make().String() },
		log:         logger.With().Str("component", "job_processor").Logger(),
	}
}

// Start launches the drain loop. Call Stop to wait for the in-flight job.
func (p *Processor) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.drain(ctx)
	p.log.Info().Int("queue_size", p.cfg.QueueSize).Msg("job processor started")
}

func (p *Processor) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.log.Info().Msg("job processor stopped")
}

// Enqueue registers a pending job for the blueprint and returns at once.
// One live run per blueprint: a second call while the first is pending or
// processing fails with ErrGenerationInProgress.
func (p *Processor) Enqueue(ctx context.Context, bp *model.Blueprint) (*model.Job, error) {
	token, err := p.locks.TryLock(ctx, bp.ID, p.cfg.LeaseTTL)
	if err != nil {
		return nil, err
	}

	job := model.NewJob(p.newID(), bp.ID, p.now())

	p.mu.Lock()
	p.jobs[job.ID] = job
	p.byBlueprint[bp.ID] = job.ID
	p.tokens[job.ID] = token
	p.mu.Unlock()

	select {
	case p.queue <- queued{jobID: job.ID, bp: bp}:
	default:
		p.mu.Lock()
		delete(p.jobs, job.ID)
		delete(p.byBlueprint, bp.ID)
		delete(p.tokens, job.ID)
		p.mu.Unlock()
		_ = p.locks.Unlock(ctx, bp.ID, token)
		return nil, domain.ErrQueueFull
	}

	metrics.SetJobQueueDepth(len(p.queue))
	p.log.Info().Str("job_id", job.ID).Str("blueprint_id", bp.ID).Msg("job enqueued")
	return job.Clone(), nil
}

// Job returns a snapshot of the job, falling back to the archive once the
// retention sweep has dropped it from memory.
func (p *Processor) Job(ctx context.Context, id string) (*model.Job, error) {
	p.mu.RLock()
	job, ok := p.jobs[id]
	p.mu.RUnlock()
	if ok {
		return job.Clone(), nil
	}
	if p.archive != nil {
		return p.archive.FindByID(ctx, id)
	}
	return nil, domain.ErrNotFound
}

// JobForBlueprint returns the most recent job for the blueprint.
func (p *Processor) JobForBlueprint(ctx context.Context, blueprintID string) (*model.Job, error) {
	p.mu.RLock()
	id, ok := p.byBlueprint[blueprintID]
	var job *model.Job
	if ok {
		job = p.jobs[id]
	}
	p.mu.RUnlock()
	if job != nil {
		return job.Clone(), nil
	}
	if p.archive != nil {
		return p.archive.FindLatestByBlueprint(ctx, blueprintID)
	}
	return nil, domain.ErrNotFound
}

// List returns snapshots of the in-memory jobs, newest first.
func (p *Processor) List(ctx context.Context, limit int) []*model.Job {
	p.mu.RLock()
	out := make([]*model.Job, 0, len(p.jobs))
	for _, j := range p.jobs {
		out = append(out, j.Clone())
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (p *Processor) drain(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-p.queue:
			metrics.SetJobQueueDepth(len(p.queue))
			p.processOne(ctx, q)
		}
	}
}

// processOne runs a single job to a terminal state. It never lets a
// failure, or even a panic, escape into the drain loop.
func (p *Processor) processOne(ctx context.Context, q queued) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Str("job_id", q.jobID).
				Bytes("stack", debug.Stack()).Msg("job panicked")
			p.fail(q, nil, &pipeline.StageError{Agent: "internal", Kind: pipeline.KindModel, Err: errors.New("internal error")}, 0)
		}
	}()

	p.setRunning(q.jobID)
	p.log.Info().Str("job_id", q.jobID).Str("blueprint_id", q.bp.ID).Msg("job started")
	start := p.now()

	jobCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()
	jobCtx = logging.WithJobID(jobCtx, q.jobID)
	jobCtx = logging.WithBlueprintID(jobCtx, q.bp.ID)

	rec := &stageLog{now: p.now}
	acc, err := p.runner.Run(jobCtx, rec.wrap(p.agents), pipeline.SeedContext(q.bp),
		func(step string, pct int) { p.setProgress(q.jobID, step, pct) })

	elapsed := p.now().Sub(start)
	p.finishRun(q, acc, rec.results(), err, elapsed)
}

// finishRun converts the chain outcome into the terminal job state.
func (p *Processor) finishRun(q queued, acc pipeline.Context, stages []model.StageResult, err error, elapsed time.Duration) {
	if err != nil {
		var stageErr *pipeline.StageError
		if !errors.As(err, &stageErr) {
			stageErr = &pipeline.StageError{Agent: "chain", Kind: pipeline.KindModel, Err: err}
		}
		metrics.IncStageFailure(stageErr.Agent, string(stageErr.Kind))
		p.log.Error().Err(stageErr.Unwrap()).
			Str("job_id", q.jobID).
			Str("agent", stageErr.Agent).
			Str("kind", string(stageErr.Kind)).
			Dur("elapsed", elapsed).
			Msg("job failed")
		p.fail(q, partialOf(acc), stageErr, elapsed)
		return
	}

	meta := model.StrategyMetadata{
		ElapsedSeconds: elapsed.Seconds(),
		GeneratedAt:    p.now(),
		AgentsExecuted: len(p.agents),
		TokenEstimate:  estimateTokens(acc),
		Stages:         stages,
	}
	strategy := pipeline.BuildStrategy(acc, meta)
	p.complete(q, strategy, elapsed)
}

// fail marks the job failed with a short message; the verbose cause has
// already been logged.
func (p *Processor) fail(q queued, partial map[string]any, stageErr *pipeline.StageError, elapsed time.Duration) {
	now := p.now()

	p.mu.Lock()
	var snapshot *model.Job
	if job, ok := p.jobs[q.jobID]; ok {
		job.Status = model.JobStatusFailed
		job.Error = stageErr.Error()
		job.Partial = partial
		job.UpdatedAt = now
		snapshot = job.Clone()
	}
	p.mu.Unlock()

	metrics.IncJob(string(model.JobStatusFailed))
	metrics.ObserveJobDuration(string(model.JobStatusFailed), elapsed.Milliseconds())

	q.bp.Status = model.BlueprintStatusFailed
	q.bp.UpdatedAt = now
	p.persist(q, snapshot)
	p.release(q)
}

func (p *Processor) complete(q queued, strategy *model.FinanceStrategy, elapsed time.Duration) {
	now := p.now()

	p.mu.Lock()
	var snapshot *model.Job
	if job, ok := p.jobs[q.jobID]; ok {
		job.Status = model.JobStatusCompleted
		job.Result = strategy
		job.Progress = 100
		job.CurrentStep = "done"
		job.UpdatedAt = now
		snapshot = job.Clone()
	}
	p.mu.Unlock()

	metrics.IncJob(string(model.JobStatusCompleted))
	metrics.ObserveJobDuration(string(model.JobStatusCompleted), elapsed.Milliseconds())
	p.log.Info().Str("job_id", q.jobID).Dur("elapsed", elapsed).Msg("job completed")

	q.bp.Status = model.BlueprintStatusReady
	q.bp.Strategy = strategy
	q.bp.UpdatedAt = now

	if p.cache != nil {
		if err := p.cache.StoreStrategy(context.Background(), q.bp.ID, strategy); err != nil {
			p.log.Warn().Err(err).Str("blueprint_id", q.bp.ID).Msg("strategy cache write failed")
		}
	}
	p.persist(q, snapshot)
	p.release(q)
}

// persist writes the blueprint and the terminal job snapshot. The job
// context may already be expired, so persistence runs on a fresh one.
func (p *Processor) persist(q queued, snapshot *model.Job) {
	ctx := context.Background()

	if p.blueprints != nil && p.tm != nil {
		err := p.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := p.blueprints.Save(ctx, tx, q.bp); err != nil {
				return err
			}
			if p.archive != nil && snapshot != nil {
				return p.archive.Save(ctx, tx, snapshot)
			}
			return nil
		})
		if err != nil {
			p.log.Error().Err(err).Str("blueprint_id", q.bp.ID).Msg("persist failed")
		}
		return
	}
	if p.blueprints != nil {
		if err := p.blueprints.Save(ctx, repository.NoTX, q.bp); err != nil {
			p.log.Error().Err(err).Str("blueprint_id", q.bp.ID).Msg("blueprint save failed")
		}
	}
}

func (p *Processor) release(q queued) {
	p.mu.Lock()
	token := p.tokens[q.jobID]
	delete(p.tokens, q.jobID)
	p.mu.Unlock()

	if token != "" {
		if err := p.locks.Unlock(context.Background(), q.bp.ID, token); err != nil {
			p.log.Warn().Err(err).Str("blueprint_id", q.bp.ID).Msg("lease release failed")
		}
	}
}

func (p *Processor) setRunning(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if job, ok := p.jobs[jobID]; ok {
		job.Status = model.JobStatusProcessing
		job.Progress = 5
		job.CurrentStep = "starting"
		job.UpdatedAt = p.now()
	}
}

func (p *Processor) setProgress(jobID, step string, pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	if pct > job.Progress {
		job.Progress = pct
	}
	job.CurrentStep = step
	job.UpdatedAt = p.now()
}

// Sweep drops terminal jobs older than the retention window and reports
// how many were removed. Live jobs are never touched.
func (p *Processor) Sweep(ctx context.Context) int {
	cutoff := p.now().Add(-p.cfg.Retention)

	p.mu.Lock()
	removed := 0
	for id, job := range p.jobs {
		if !job.Status.Terminal() || job.UpdatedAt.After(cutoff) {
			continue
		}
		delete(p.jobs, id)
		delete(p.tokens, id)
		if p.byBlueprint[job.BlueprintID] == id {
			delete(p.byBlueprint, job.BlueprintID)
		}
		removed++
	}
	p.mu.Unlock()

	if removed > 0 {
		metrics.AddJobsSwept(removed)
		p.log.Info().Int("removed", removed).Msg("retention sweep")
	}
	return removed
}

// partialOf keeps the produced fragments for diagnostics, dropping the
// seeded input which already lives on the blueprint.
func partialOf(acc pipeline.Context) map[string]any {
	if len(acc) == 0 {
		return nil
	}
	out := make(map[string]any, len(acc))
	for k, v := range acc {
		if k == "input" || k == "idea" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// estimateTokens mirrors the rough size heuristic the status API reports:
// a quarter of the serialized context.
func estimateTokens(acc pipeline.Context) int {
	b, err := json.Marshal(acc)
	if err != nil {
		return 0
	}
	return len(b) / 4
}

// stageLog collects per-stage results for the strategy audit trail.
type stageLog struct {
	mu      sync.Mutex
	now     func() time.Time
	entries []model.StageResult
}

func (s *stageLog) add(r model.StageResult) {
	s.mu.Lock()
	s.entries = append(s.entries, r)
	s.mu.Unlock()
}

func (s *stageLog) results() []model.StageResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.StageResult, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *stageLog) wrap(agents []pipeline.Agent) []pipeline.Agent {
	out := make([]pipeline.Agent, len(agents))
	for i, a := range agents {
		out[i] = &recordedAgent{inner: a, rec: s}
	}
	return out
}

type recordedAgent struct {
	inner pipeline.Agent
	rec   *stageLog
}

func (a *recordedAgent) Name() string { return a.inner.Name() }

func (a *recordedAgent) Run(ctx context.Context, c pipeline.Context) (pipeline.Fragment, error) {
	frag, err := a.inner.Run(ctx, c)
	if err != nil {
		a.rec.add(model.StageResult{
			Agent:     a.inner.Name(),
			Status:    "failed",
			Timestamp: a.rec.now(),
			Error:     err.Error(),
		})
		return nil, err
	}
	keys := make([]string, 0, len(frag))
	for k := range frag {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	a.rec.add(model.StageResult{
		Agent:      a.inner.Name(),
		Status:     "success",
		Timestamp:  a.rec.now(),
		OutputKeys: keys,
	})
	return frag, nil
}
