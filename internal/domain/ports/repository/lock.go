package repository

import (
	"context"
	"time"
)

// SubjectLock guards one generation run per blueprint across process
// instances. TryLock returns an owner token; Unlock releases only when the
// token still matches, so an expired-and-reacquired lock is never stolen.
type SubjectLock interface {
	TryLock(ctx context.Context, blueprintID string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, blueprintID, token string) error
}
