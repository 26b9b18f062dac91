// File: internal/infra/memory/kv.go
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"finiq-ai-pipeline/internal/domain"
	"finiq-ai-pipeline/internal/domain/ports/repository"
)

var _ repository.KVStore = (*KV)(nil)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// KV is the in-process KVStore used when no Redis is configured, and in
// tests. Semantics mirror the Redis adapter: expiry is checked on access,
// IncrBy is atomic under the store mutex, Keys matches glob patterns.
type KV struct {
	mu  sync.Mutex
	now func() time.Time
	m   map[string]entry
}

func NewKV() *KV { return NewKVWithClock(time.Now) }

// NewKVWithClock exists for deterministic TTL math in tests.
func NewKVWithClock(now func() time.Time) *KV {
	return &KV{now: now, m: make(map[string]entry)}
}

func (s *KV) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

func (s *KV) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return "", domain.ErrCacheMiss
	}
	if s.expired(e) {
		delete(s.m, key)
		return "", domain.ErrCacheMiss
	}
	return e.value, nil
}

func (s *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.m[key] = e
	return nil
}

func (s *KV) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, key := range keys {
		e, ok := s.m[key]
		if ok && !s.expired(e) {
			n++
		}
		delete(s.m, key)
	}
	return n, nil
}

func (s *KV) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok || s.expired(e) {
		e = entry{}
		delete(s.m, key)
	}
	cur := int64(0)
	if e.value != "" {
		v, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %q is not an integer", key)
		}
		cur = v
	}
	cur += delta
	e.value = strconv.FormatInt(cur, 10)
	s.m[key] = e
	return cur, nil
}

func (s *KV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok || s.expired(e) {
		return nil
	}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	s.m[key] = e
	return nil
}

func (s *KV) Keys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for key, e := range s.m {
		if s.expired(e) {
			delete(s.m, key)
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *KV) Ping(ctx context.Context) error { return nil }

func (s *KV) Close() error { return nil }

// Sweep drops expired entries eagerly and returns how many were removed.
// Reads already treat expired entries as gone; this just frees the memory.
// Called by the retention worker.
func (s *KV) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, e := range s.m {
		if s.expired(e) {
			delete(s.m, key)
			removed++
		}
	}
	return removed
}
