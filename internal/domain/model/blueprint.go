package model

import "time"

type BlueprintStatus string

const (
	BlueprintStatusDraft      BlueprintStatus = "draft"
	BlueprintStatusGenerating BlueprintStatus = "generating"
	BlueprintStatusReady      BlueprintStatus = "ready"
	BlueprintStatusFailed     BlueprintStatus = "failed"
)

// Blueprint is the subject of a generation run: the user's idea plus the
// structured intake form, and eventually the generated strategy.
type Blueprint struct {
	ID        string
	UserID    string
	Idea      string
	Input     StartupInput
	Status    BlueprintStatus
	Strategy  *FinanceStrategy
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewBlueprint(id, userID, idea string, input StartupInput, now time.Time) *Blueprint {
	return &Blueprint{
		ID:        id,
		UserID:    userID,
		Idea:      idea,
		Input:     input,
		Status:    BlueprintStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a snapshot. Strategy is shared: it is never modified once
// attached.
func (b *Blueprint) Clone() *Blueprint {
	cp := *b
	return &cp
}
