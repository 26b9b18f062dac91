// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"finiq-ai-pipeline/internal/domain"
	"finiq-ai-pipeline/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var _ repository.SubjectLock = (*GenerationLock)(nil)

// GenerationLock guards one generation run per blueprint across process
// instances. The in-process lease inside the worker stays authoritative;
// this lock only widens the guarantee when instances share one Redis.
// A held lock answers immediately with ErrGenerationInProgress: waiting
// for a generation run to finish is never useful at enqueue time.
type GenerationLock struct {
	cli *redis.Client
}

func NewGenerationLock(c *Client) *GenerationLock {
	return &GenerationLock{cli: c.cli}
}

func lockKey(blueprintID string) string { return "pipeline:lock:" + blueprintID }

func (l *GenerationLock) TryLock(ctx context.Context, blueprintID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, lockKey(blueprintID), token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrGenerationInProgress
	}
	return token, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// Unlock releases only while the token still matches, so a lock that
// expired and was re-acquired elsewhere is never stolen.
func (l *GenerationLock) Unlock(ctx context.Context, blueprintID, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{lockKey(blueprintID)}, token).Result()
	return err
}
