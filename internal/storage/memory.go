package storage

import (
	"context"
	"sync"
	"time"

	"pulsebot/internal/activity"
)

type memKey struct {
	subscriber int64
	scope      string
}

// Memory is a map-backed Store for tests and dry runs.
type Memory struct {
	mu    sync.RWMutex
	rules map[memKey]activity.Rule
}

func NewMemory() *Memory {
	return &Memory{rules: map[memKey]activity.Rule{}}
}

func (m *Memory) UpsertRule(_ context.Context, r activity.Rule) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	key := memKey{subscriber: r.Subscriber, scope: r.Scope.Key()}
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	prev, exists := m.rules[key]
	if exists {
		r.CreatedAt = prev.CreatedAt
	} else {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	m.rules[key] = r
	return !exists, nil
}

func (m *Memory) DeleteRule(_ context.Context, subscriber int64, scope activity.Scope) (bool, error) {
	key := memKey{subscriber: subscriber, scope: scope.Key()}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[key]; !ok {
		return false, nil
	}
	delete(m.rules, key)
	return true, nil
}

func (m *Memory) ListRulesFor(_ context.Context, subscriber int64) ([]activity.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []activity.Rule
	for k, r := range m.rules {
		if k.subscriber == subscriber {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) ListSubscribers(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[int64]struct{}{}
	var out []int64
	for k := range m.rules {
		if _, dup := seen[k.subscriber]; dup {
			continue
		}
		seen[k.subscriber] = struct{}{}
		out = append(out, k.subscriber)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
