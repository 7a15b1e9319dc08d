package storage

import (
	"context"
	"testing"
	"time"

	"pulsebot/internal/activity"
)

func rule(sub int64, scope activity.Scope) activity.Rule {
	return activity.Rule{
		Subscriber:      sub,
		Scope:           scope,
		Threshold:       1,
		Cooldown:        5 * time.Minute,
		Lookback:        10,
		MinParticipants: 2,
	}
}

func TestMemoryUpsertCreateThenUpdate(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	created, err := m.UpsertRule(ctx, rule(7, activity.Global()))
	if err != nil {
		t.Fatalf("UpsertRule: %v", err)
	}
	if !created {
		t.Fatal("first upsert must report created")
	}

	r2 := rule(7, activity.Global())
	r2.Threshold = 3
	created, err = m.UpsertRule(ctx, r2)
	if err != nil {
		t.Fatalf("UpsertRule: %v", err)
	}
	if created {
		t.Fatal("second upsert for the same key must report updated")
	}

	rules, err := m.ListRulesFor(ctx, 7)
	if err != nil {
		t.Fatalf("ListRulesFor: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	if rules[0].Threshold != 3 {
		t.Fatalf("Threshold = %v, want 3", rules[0].Threshold)
	}
	if rules[0].CreatedAt.IsZero() || rules[0].UpdatedAt.Before(rules[0].CreatedAt) {
		t.Fatalf("timestamps not maintained: %+v", rules[0])
	}
}

func TestMemoryUpsertRejectsInvalid(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	bad := rule(0, activity.Global())
	if _, err := m.UpsertRule(context.Background(), bad); err == nil {
		t.Fatal("expected validation error for missing subscriber")
	}
}

func TestMemoryDelete(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()
	if _, err := m.UpsertRule(ctx, rule(7, activity.GroupScope("100"))); err != nil {
		t.Fatalf("UpsertRule: %v", err)
	}

	ok, err := m.DeleteRule(ctx, 7, activity.GroupScope("100"))
	if err != nil || !ok {
		t.Fatalf("DeleteRule = (%v, %v), want deleted", ok, err)
	}
	ok, err = m.DeleteRule(ctx, 7, activity.GroupScope("100"))
	if err != nil || ok {
		t.Fatalf("repeat DeleteRule = (%v, %v), want not found", ok, err)
	}
}

func TestMemoryListSubscribers(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()
	for _, r := range []activity.Rule{
		rule(7, activity.Global()),
		rule(7, activity.GroupScope("100")),
		rule(9, activity.Global()),
	} {
		if _, err := m.UpsertRule(ctx, r); err != nil {
			t.Fatalf("UpsertRule: %v", err)
		}
	}

	subs, err := m.ListSubscribers(ctx)
	if err != nil {
		t.Fatalf("ListSubscribers: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("got %d subscribers, want 2: %v", len(subs), subs)
	}
	seen := map[int64]bool{}
	for _, s := range subs {
		seen[s] = true
	}
	if !seen[7] || !seen[9] {
		t.Fatalf("missing subscriber in %v", subs)
	}
}
