// File: internal/ratelimit/limiter.go
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding window log: per identifier it keeps the timestamps of
// accepted requests inside the window. Denied requests are never recorded, so
// a client hammering a full window cannot push its own reset further out.
// State is per process; identifiers from different instances do not share a
// window.
type Limiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	now    func() time.Time
	log    map[string][]time.Time
}

func New(max int, window time.Duration) *Limiter {
	return NewWithClock(max, window, time.Now)
}

// NewWithClock exists for deterministic window math in tests.
func NewWithClock(max int, window time.Duration, now func() time.Time) *Limiter {
	return &Limiter{
		max:    max,
		window: window,
		now:    now,
		log:    make(map[string][]time.Time),
	}
}

// Allow prunes expired timestamps and admits the request when the retained
// count is below the limit. Only acceptance records a timestamp.
func (l *Limiter) Allow(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	kept := l.prune(id, now)
	if len(kept) >= l.max {
		return false
	}
	l.log[id] = append(kept, now)
	return true
}

// Remaining reports how many requests the identifier could still make now.
func (l *Limiter) Remaining(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.prune(id, l.now())
	if n := l.max - len(kept); n > 0 {
		return n
	}
	return 0
}

// ResetAt reports when the oldest retained timestamp leaves the window. With
// nothing retained it returns the current time: a request now would pass.
func (l *Limiter) ResetAt(id string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	kept := l.prune(id, now)
	if len(kept) == 0 {
		return now
	}
	return kept[0].Add(l.window)
}

// prune drops timestamps aged window or more and stores the survivors.
// Caller holds l.mu.
func (l *Limiter) prune(id string, now time.Time) []time.Time {
	entries := l.log[id]
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(entries) && !entries[i].After(cutoff) {
		i++
	}
	kept := entries[i:]
	if len(kept) == 0 {
		delete(l.log, id)
	} else if i > 0 {
		kept = append([]time.Time(nil), kept...)
		l.log[id] = kept
	}
	return kept
}

// PruneIdle drops identifiers whose newest timestamp is older than horizon
// and returns how many were removed. Called by the retention sweep.
func (l *Limiter) PruneIdle(horizon time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-horizon)
	removed := 0
	for id, entries := range l.log {
		if len(entries) == 0 || entries[len(entries)-1].Before(cutoff) {
			delete(l.log, id)
			removed++
		}
	}
	return removed
}
