// File: internal/infra/worker/processor_test.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"finiq-ai-pipeline/internal/domain"
	"finiq-ai-pipeline/internal/domain/model"
	"finiq-ai-pipeline/internal/infra/memory"
	"finiq-ai-pipeline/internal/pipeline"
)

type fakeAgent struct {
	name  string
	frag  pipeline.Fragment
	err   error
	block chan struct{}
	boom  bool
}

func (a *fakeAgent) Name() string { return a.name }

func (a *fakeAgent) Run(ctx context.Context, c pipeline.Context) (pipeline.Fragment, error) {
	if a.boom {
		panic("agent exploded")
	}
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return nil, &pipeline.StageError{Agent: a.name, Kind: pipeline.KindTimeout, Err: ctx.Err()}
		}
	}
	if a.err != nil {
		return nil, &pipeline.StageError{Agent: a.name, Kind: pipeline.KindModel, Err: a.err}
	}
	return a.frag, nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestProcessor(t *testing.T, cfg Config, agents []pipeline.Agent) *Processor {
	t.Helper()
	nop := zerolog.Nop()
	runner := pipeline.NewRunner(0, &nop)
	return NewProcessor(cfg, runner, agents, memory.NewLock(), nil, nil, nil, nil, &nop)
}

func testBlueprint(id string) *model.Blueprint {
	idea := "expense tracking for dental clinics"
	return model.NewBlueprint(id, "user-1", idea, model.DefaultStartupInput(idea), time.Now())
}

func waitStatus(t *testing.T, p *Processor, jobID string, want model.JobStatus) *model.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := p.Job(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", jobID, want)
	return nil
}

func TestProcessorCompletesJob(t *testing.T) {
	agents := []pipeline.Agent{
		&fakeAgent{name: pipeline.AgentFundingStage, frag: pipeline.Fragment{"funding_stage": "Seed", "confidence": "high", "rationale": "early"}},
		&fakeAgent{name: pipeline.AgentRaiseAmount, frag: pipeline.Fragment{"recommended_amount": "$750K", "rationale": "runway"}},
	}
	p := newTestProcessor(t, Config{}, agents)
	p.Start(context.Background())
	defer p.Stop()

	job, err := p.Enqueue(context.Background(), testBlueprint("bp-1"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.Status != model.JobStatusPending {
		t.Fatalf("fresh job status = %s, want pending", job.Status)
	}

	done := waitStatus(t, p, job.ID, model.JobStatusCompleted)
	if done.Progress != 100 || done.CurrentStep != "done" {
		t.Fatalf("completed job progress=%d step=%q", done.Progress, done.CurrentStep)
	}
	if done.Result == nil {
		t.Fatal("completed job has no result")
	}
	if done.Error != "" {
		t.Fatalf("completed job carries error %q", done.Error)
	}
	if done.Result.FundingStage["funding_stage"] != "Seed" {
		t.Fatalf("result missing fragment: %+v", done.Result.FundingStage)
	}
	if got := len(done.Result.Metadata.Stages); got != 2 {
		t.Fatalf("audit trail has %d stages, want 2", got)
	}
	if done.Result.Metadata.Stages[0].Status != "success" {
		t.Fatalf("stage status = %q", done.Result.Metadata.Stages[0].Status)
	}
}

func TestProcessorSingleLiveJobPerBlueprint(t *testing.T) {
	gate := make(chan struct{})
	agents := []pipeline.Agent{
		&fakeAgent{name: pipeline.AgentFundingStage, frag: pipeline.Fragment{"funding_stage": "Seed"}, block: gate},
	}
	p := newTestProcessor(t, Config{}, agents)
	p.Start(context.Background())
	defer p.Stop()

	bp := testBlueprint("bp-1")
	first, err := p.Enqueue(context.Background(), bp)
	if err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}

	if _, err := p.Enqueue(context.Background(), bp); !errors.Is(err, domain.ErrGenerationInProgress) {
		t.Fatalf("second Enqueue = %v, want ErrGenerationInProgress", err)
	}

	// A different blueprint is not blocked by bp-1's lease.
	if _, err := p.Enqueue(context.Background(), testBlueprint("bp-2")); err != nil {
		t.Fatalf("other blueprint Enqueue: %v", err)
	}

	close(gate)
	waitStatus(t, p, first.ID, model.JobStatusCompleted)

	// Lease released after the terminal state; a new run may start.
	if _, err := p.Enqueue(context.Background(), bp); err != nil {
		t.Fatalf("Enqueue after completion: %v", err)
	}
}

func TestProcessorFailureIsolation(t *testing.T) {
	agents := []pipeline.Agent{
		&fakeAgent{name: pipeline.AgentFundingStage, frag: pipeline.Fragment{"funding_stage": "Seed"}},
		&fakeAgent{name: pipeline.AgentRaiseAmount, err: errors.New("upstream 500: quota exceeded for project demo-123")},
	}
	p := newTestProcessor(t, Config{}, agents)
	p.Start(context.Background())
	defer p.Stop()

	job, err := p.Enqueue(context.Background(), testBlueprint("bp-1"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	failed := waitStatus(t, p, job.ID, model.JobStatusFailed)

	if failed.Error != "agent raise_amount failed (model)" {
		t.Fatalf("job error = %q, want the short attribution", failed.Error)
	}
	if failed.Result != nil {
		t.Fatal("failed job must not carry a result")
	}
	if _, ok := failed.Partial[pipeline.AgentFundingStage]; !ok {
		t.Fatalf("partial context lost: %v", failed.Partial)
	}
	if _, ok := failed.Partial[pipeline.AgentRaiseAmount]; ok {
		t.Fatal("failed stage must not contribute a fragment")
	}

	// The worker loop survives and drains the next job.
	p2 := testBlueprint("bp-2")
	next, err := p.Enqueue(context.Background(), p2)
	if err != nil {
		t.Fatalf("Enqueue after failure: %v", err)
	}
	waitStatus(t, p, next.ID, model.JobStatusFailed)
}

func TestProcessorSurvivesPanic(t *testing.T) {
	agents := []pipeline.Agent{&fakeAgent{name: "bad", boom: true}}
	p := newTestProcessor(t, Config{}, agents)
	p.Start(context.Background())
	defer p.Stop()

	job, err := p.Enqueue(context.Background(), testBlueprint("bp-1"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	failed := waitStatus(t, p, job.ID, model.JobStatusFailed)
	if failed.Error == "" {
		t.Fatal("panicked job should surface a short error")
	}

	next, err := p.Enqueue(context.Background(), testBlueprint("bp-2"))
	if err != nil {
		t.Fatalf("Enqueue after panic: %v", err)
	}
	waitStatus(t, p, next.ID, model.JobStatusFailed)
}

func TestProcessorQueueFull(t *testing.T) {
	agents := []pipeline.Agent{&fakeAgent{name: "a", frag: pipeline.Fragment{"x": 1}}}
	p := newTestProcessor(t, Config{QueueSize: 1}, agents)
	// Not started: nothing drains the queue.

	if _, err := p.Enqueue(context.Background(), testBlueprint("bp-1")); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	_, err := p.Enqueue(context.Background(), testBlueprint("bp-2"))
	if !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("second Enqueue = %v, want ErrQueueFull", err)
	}

	// The rejected blueprint's lease was rolled back, so the retry fails on
	// queue capacity again, not on the lease.
	_, err = p.Enqueue(context.Background(), testBlueprint("bp-2"))
	if !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("retry Enqueue = %v, want ErrQueueFull", err)
	}
}

func TestProcessorJobLookups(t *testing.T) {
	agents := []pipeline.Agent{&fakeAgent{name: "a", frag: pipeline.Fragment{"x": 1}}}
	p := newTestProcessor(t, Config{}, agents)
	p.Start(context.Background())
	defer p.Stop()

	if _, err := p.Job(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Job(missing) = %v, want ErrNotFound", err)
	}
	if _, err := p.JobForBlueprint(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("JobForBlueprint(missing) = %v, want ErrNotFound", err)
	}

	bp := testBlueprint("bp-1")
	first, err := p.Enqueue(context.Background(), bp)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitStatus(t, p, first.ID, model.JobStatusCompleted)

	second, err := p.Enqueue(context.Background(), bp)
	if err != nil {
		t.Fatalf("second Enqueue: %v", err)
	}

	latest, err := p.JobForBlueprint(context.Background(), bp.ID)
	if err != nil {
		t.Fatalf("JobForBlueprint: %v", err)
	}
	if latest.ID != second.ID {
		t.Fatalf("latest job = %s, want %s", latest.ID, second.ID)
	}
	waitStatus(t, p, second.ID, model.JobStatusCompleted)
}

func TestProcessorSnapshotsAreIsolated(t *testing.T) {
	gate := make(chan struct{})
	agents := []pipeline.Agent{&fakeAgent{name: "a", frag: pipeline.Fragment{"x": 1}, block: gate}}
	p := newTestProcessor(t, Config{}, agents)
	p.Start(context.Background())
	defer p.Stop()

	job, err := p.Enqueue(context.Background(), testBlueprint("bp-1"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	snap, _ := p.Job(context.Background(), job.ID)
	snap.Status = model.JobStatusCompleted
	snap.Progress = 100

	live, _ := p.Job(context.Background(), job.ID)
	if live.Status == model.JobStatusCompleted && live.Progress == 100 {
		t.Fatal("mutating a snapshot leaked into processor state")
	}
	close(gate)
	waitStatus(t, p, job.ID, model.JobStatusCompleted)
}

func TestProcessorSweep(t *testing.T) {
	agents := []pipeline.Agent{&fakeAgent{name: "a", frag: pipeline.Fragment{"x": 1}}}
	clock := newTestClock()
	p := newTestProcessor(t, Config{Retention: time.Hour}, agents)
	p.now = clock.Now
	p.Start(context.Background())
	defer p.Stop()

	job, err := p.Enqueue(context.Background(), testBlueprint("bp-1"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitStatus(t, p, job.ID, model.JobStatusCompleted)

	// Inside the retention window nothing is dropped.
	if n := p.Sweep(context.Background()); n != 0 {
		t.Fatalf("early sweep removed %d", n)
	}

	clock.Advance(2 * time.Hour)
	if n := p.Sweep(context.Background()); n != 1 {
		t.Fatalf("sweep removed %d, want 1", n)
	}
	if _, err := p.Job(context.Background(), job.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("swept job still visible: %v", err)
	}
	if _, err := p.JobForBlueprint(context.Background(), "bp-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("swept blueprint mapping still visible: %v", err)
	}
}

func TestProcessorSweepSkipsLiveJobs(t *testing.T) {
	gate := make(chan struct{})
	agents := []pipeline.Agent{&fakeAgent{name: "a", frag: pipeline.Fragment{"x": 1}, block: gate}}
	clock := newTestClock()
	p := newTestProcessor(t, Config{Retention: time.Hour}, agents)
	p.now = clock.Now
	p.Start(context.Background())
	defer p.Stop()

	job, err := p.Enqueue(context.Background(), testBlueprint("bp-1"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	clock.Advance(3 * time.Hour)
	if n := p.Sweep(context.Background()); n != 0 {
		t.Fatalf("sweep removed %d live jobs", n)
	}
	if _, err := p.Job(context.Background(), job.ID); err != nil {
		t.Fatalf("live job vanished: %v", err)
	}
	close(gate)
	waitStatus(t, p, job.ID, model.JobStatusCompleted)
}

func TestProcessorList(t *testing.T) {
	agents := []pipeline.Agent{&fakeAgent{name: "a", frag: pipeline.Fragment{"x": 1}}}
	clock := newTestClock()
	p := newTestProcessor(t, Config{}, agents)
	p.now = clock.Now

	for i := 0; i < 3; i++ {
		if _, err := p.Enqueue(context.Background(), testBlueprint(fmt.Sprintf("bp-%d", i))); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
		clock.Advance(time.Minute)
	}

	jobs := p.List(context.Background(), 2)
	if len(jobs) != 2 {
		t.Fatalf("List returned %d, want 2", len(jobs))
	}
	if jobs[0].BlueprintID != "bp-2" || jobs[1].BlueprintID != "bp-1" {
		t.Fatalf("order wrong: %s, %s", jobs[0].BlueprintID, jobs[1].BlueprintID)
	}
}
