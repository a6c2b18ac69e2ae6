package ratelimit

import (
	"sync"
	"time"

	"clusterwatch/pkg/core"
)

// Limiter admits at most one event per key inside a caller supplied window.
// It is shared by every trigger evaluation; one coarse lock guards the map.
// Entries hold the last admission time rather than x/time/rate buckets so the
// window can vary per call and the boundary is exactly now-last >= window.
type Limiter struct {
	mu        sync.Mutex
	clock     core.Clock
	lastFired map[string]time.Time
}

// New constructs an empty Limiter. A nil clock uses the wall clock.
func New(clock core.Clock) *Limiter {
	if clock == nil {
		clock = core.RealClock()
	}
	return &Limiter{clock: clock, lastFired: make(map[string]time.Time)}
}

// Key joins a scope and an entity into a limiter key.
func Key(scope, entity string) string {
	return scope + ":" + entity
}

// MarkAndTest admits the key when it never fired or when at least window has
// passed since the last admission. Admission records the current time.
// A suppressed call leaves the last admission untouched.
func (l *Limiter) MarkAndTest(scope, entity string, window time.Duration) bool {
	key := Key(scope, entity)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if last, fired := l.lastFired[key]; fired && now.Sub(last) < window {
		return false
	}
	l.lastFired[key] = now
	return true
}

// Evict drops keys whose last admission is older than maxAge and returns how
// many were removed.
func (l *Limiter) Evict(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	removed := 0
	for key, last := range l.lastFired {
		if now.Sub(last) > maxAge {
			delete(l.lastFired, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lastFired)
}
