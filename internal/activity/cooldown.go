package activity

import (
	"sync"
	"time"
)

type cooldownKey struct {
	subscriber int64
	scope      string
}

// CooldownGate tracks the last notification time per (subscriber, scope) and
// suppresses re-notification inside the cooldown interval.
//
// This is the one piece of shared mutable state in the pipeline. Check and
// record happen under a single lock acquisition so two near-simultaneous
// evaluations for the same key cannot both pass. Callers must never hold the
// gate across I/O; TryAcquire itself does none.
type CooldownGate struct {
	mu   sync.Mutex
	last map[cooldownKey]time.Time

	clock func() time.Time
}

// NewCooldownGate builds a gate. clock may be nil (time.Now); tests inject a
// fake for determinism.
func NewCooldownGate(clock func() time.Time) *CooldownGate {
	if clock == nil {
		clock = time.Now
	}
	return &CooldownGate{
		last:  map[cooldownKey]time.Time{},
		clock: clock,
	}
}

// TryAcquire reports whether a notification for (subscriber, scope) is
// allowed now, and if so records the emission time as part of the same
// atomic step. cooldown comes from the matched rule.
func (g *CooldownGate) TryAcquire(subscriber int64, scope Scope, cooldown time.Duration) bool {
	now := g.clock()
	key := cooldownKey{subscriber: subscriber, scope: scope.Key()}

	g.mu.Lock()
	defer g.mu.Unlock()

	if at, ok := g.last[key]; ok && now.Sub(at) < cooldown {
		return false
	}
	g.last[key] = now
	return true
}

// LastNotified returns the recorded emission time for a key, if any.
func (g *CooldownGate) LastNotified(subscriber int64, scope Scope) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	at, ok := g.last[cooldownKey{subscriber: subscriber, scope: scope.Key()}]
	return at, ok
}

// Len reports the number of tracked keys (bounded by active rules; exposed
// for /status).
func (g *CooldownGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.last)
}

// Prune drops entries whose last notification is older than maxAge and
// returns how many were removed. Run periodically; correctness does not
// depend on it, an expired entry simply allows the next acquisition.
func (g *CooldownGate) Prune(maxAge time.Duration) int {
	cutoff := g.clock().Add(-maxAge)

	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for k, at := range g.last {
		if at.Before(cutoff) {
			delete(g.last, k)
			n++
		}
	}
	return n
}
