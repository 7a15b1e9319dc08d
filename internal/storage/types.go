package storage

import (
	"context"
	"time"

	"pulsebot/internal/activity"
)

// Config configures the rule store.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "memory": in-process map, lost on restart (tests, dry runs)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store persists subscriber rules. Upsert semantics are keyed by
// (subscriber, scope): at most one rule exists per pair.
type Store interface {
	// UpsertRule inserts or replaces the rule for (r.Subscriber, r.Scope).
	// created is true when no rule existed for that key before.
	UpsertRule(ctx context.Context, r activity.Rule) (created bool, err error)

	// DeleteRule removes the rule for (subscriber, scope); ok is false when
	// none existed.
	DeleteRule(ctx context.Context, subscriber int64, scope activity.Scope) (ok bool, err error)

	// ListRulesFor returns all rules owned by a subscriber.
	ListRulesFor(ctx context.Context, subscriber int64) ([]activity.Rule, error)

	// ListSubscribers returns the distinct subscribers holding at least one
	// rule (feeds the in-memory subscriber index).
	ListSubscribers(ctx context.Context) ([]int64, error)

	Close() error
}
