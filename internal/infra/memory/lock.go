// File: internal/infra/memory/lock.go
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"finiq-ai-pipeline/internal/domain"
	"finiq-ai-pipeline/internal/domain/ports/repository"
)

var _ repository.SubjectLock = (*Lock)(nil)

type lease struct {
	token     string
	expiresAt time.Time
}

// Lock is the single-process stand-in for the Redis generation lock.
type Lock struct {
	mu     sync.Mutex
	now    func() time.Time
	leases map[string]lease
}

func NewLock() *Lock { return NewLockWithClock(time.Now) }

func NewLockWithClock(now func() time.Time) *Lock {
	return &Lock{now: now, leases: make(map[string]lease)}
}

func (l *Lock) TryLock(ctx context.Context, blueprintID string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.leases[blueprintID]; ok && l.now().Before(cur.expiresAt) {
		return "", domain.ErrGenerationInProgress
	}
	token := uuid.NewString()
	l.leases[blueprintID] = lease{token: token, expiresAt: l.now().Add(ttl)}
	return token, nil
}

func (l *Lock) Unlock(ctx context.Context, blueprintID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.leases[blueprintID]; ok && cur.token == token {
		delete(l.leases, blueprintID)
	}
	return nil
}
