package model

import "time"

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job tracks one background generation run for a blueprint. Progress never
// decreases while processing; Error is set only on failed jobs, Result only
// on completed ones. Terminal jobs are immutable.
type Job struct {
	ID          string
	BlueprintID string
	Status      JobStatus
	Progress    int
	CurrentStep string
	Error       string
	Result      *FinanceStrategy
	// Partial keeps the chain context accumulated before a mid-run failure.
	// Diagnostic only, never exposed on the public status surface.
	Partial   map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewJob(id, blueprintID string, now time.Time) *Job {
	return &Job{
		ID:          id,
		BlueprintID: blueprintID,
		Status:      JobStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a snapshot safe to hand to callers while the processor keeps
// mutating the original. Result is shared: it is never modified once set.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Partial != nil {
		cp.Partial = make(map[string]any, len(j.Partial))
		for k, v := range j.Partial {
			cp.Partial[k] = v
		}
	}
	return &cp
}
