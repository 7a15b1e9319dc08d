package commands

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"pulsebot/internal/activity"
	"pulsebot/internal/storage"
	"pulsebot/internal/transport"
	logx "pulsebot/pkg/logx"
)

// fakeAdapter records outgoing sends.
type fakeAdapter struct {
	mu     sync.Mutex
	sent   []string
	direct []string
}

func (f *fakeAdapter) Start(context.Context, chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                           { return nil }

func (f *fakeAdapter) SendText(_ context.Context, _ transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return transport.MessageRef{}, nil
}

func (f *fakeAdapter) SendDirect(_ context.Context, _ int64, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct = append(f.direct, text)
	return transport.MessageRef{}, nil
}

func (f *fakeAdapter) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type cmdFixture struct {
	mgr     *Manager
	adapter *fakeAdapter
	store   storage.Store
	index   *activity.SubscriberIndex
}

func newCmdFixture(t *testing.T, owners []int64) *cmdFixture {
	t.Helper()
	adapter := &fakeAdapter{}
	store := storage.NewMemory()
	index := activity.NewSubscriberIndex()
	mgr := NewManager(adapter, owners, logx.Nop())
	RegisterAll(mgr, Deps{
		Store: store,
		Index: index,
		Gate:  activity.NewCooldownGate(nil),
	})
	return &cmdFixture{mgr: mgr, adapter: adapter, store: store, index: index}
}

func groupCommand(text string, from int64) transport.Message {
	return transport.Message{
		Chat:    transport.ChatTarget{ChatID: 100},
		FromID:  from,
		Text:    text,
		At:      time.Now(),
		IsGroup: true,
	}
}

func TestNotifyCreatesRuleAndIndexesSubscriber(t *testing.T) {
	t.Parallel()

	fx := newCmdFixture(t, nil)
	if !fx.mgr.Dispatch(context.Background(), groupCommand("/notify 2 --cooldown 10m --scope here", 7)) {
		t.Fatal("Dispatch must consume /notify")
	}

	if got := fx.adapter.last(); !strings.Contains(got, "created") {
		t.Fatalf("reply = %q, want a created confirmation", got)
	}
	rules, err := fx.store.ListRulesFor(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListRulesFor: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	r := rules[0]
	if r.Threshold != 2 || r.Cooldown != 10*time.Minute {
		t.Fatalf("unexpected rule: %+v", r)
	}
	if r.Scope != activity.ChannelScope("100") {
		t.Fatalf("Scope = %+v, want channel 100", r.Scope)
	}
	if r.Lookback != activity.DefaultLookback || r.MinParticipants != activity.DefaultMinParticipants {
		t.Fatalf("defaults not applied: %+v", r)
	}
	if fx.index.Len() != 1 {
		t.Fatalf("index Len = %d, want 1", fx.index.Len())
	}
}

func TestNotifyUpdateKeepsSingleRule(t *testing.T) {
	t.Parallel()

	fx := newCmdFixture(t, nil)
	ctx := context.Background()
	fx.mgr.Dispatch(ctx, groupCommand("/notify 1", 7))
	fx.mgr.Dispatch(ctx, groupCommand("/notify 4", 7))

	if got := fx.adapter.last(); !strings.Contains(got, "updated") {
		t.Fatalf("reply = %q, want an updated confirmation", got)
	}
	rules, _ := fx.store.ListRulesFor(ctx, 7)
	if len(rules) != 1 || rules[0].Threshold != 4 {
		t.Fatalf("unexpected rules: %+v", rules)
	}
}

func TestNotifyRejectsBadThreshold(t *testing.T) {
	t.Parallel()

	fx := newCmdFixture(t, nil)
	fx.mgr.Dispatch(context.Background(), groupCommand("/notify nope", 7))

	if got := fx.adapter.last(); !strings.Contains(got, "positive number") {
		t.Fatalf("reply = %q, want a validation message", got)
	}
	if rules, _ := fx.store.ListRulesFor(context.Background(), 7); len(rules) != 0 {
		t.Fatalf("no rule should be stored, got %+v", rules)
	}
}

func TestForgetRemovesRuleAndIndexEntry(t *testing.T) {
	t.Parallel()

	fx := newCmdFixture(t, nil)
	ctx := context.Background()
	fx.mgr.Dispatch(ctx, groupCommand("/notify 1", 7))
	fx.mgr.Dispatch(ctx, groupCommand("/forget", 7))

	if got := fx.adapter.last(); !strings.Contains(got, "deleted") {
		t.Fatalf("reply = %q, want a deletion confirmation", got)
	}
	if fx.index.Len() != 0 {
		t.Fatalf("index Len = %d, want 0 after last rule deleted", fx.index.Len())
	}
}

func TestForgetKeepsIndexWhileRulesRemain(t *testing.T) {
	t.Parallel()

	fx := newCmdFixture(t, nil)
	ctx := context.Background()
	fx.mgr.Dispatch(ctx, groupCommand("/notify 1", 7))
	fx.mgr.Dispatch(ctx, groupCommand("/notify 1 --scope here", 7))
	fx.mgr.Dispatch(ctx, groupCommand("/forget --scope here", 7))

	if fx.index.Len() != 1 {
		t.Fatalf("index Len = %d, want 1 while the global rule remains", fx.index.Len())
	}
}

func TestStatusIsOwnerOnly(t *testing.T) {
	t.Parallel()

	fx := newCmdFixture(t, []int64{1})
	ctx := context.Background()

	fx.mgr.Dispatch(ctx, groupCommand("/status", 7))
	if got := fx.adapter.last(); !strings.Contains(got, "restricted") {
		t.Fatalf("reply = %q, want a restriction message", got)
	}

	fx.mgr.Dispatch(ctx, groupCommand("/status", 1))
	if got := fx.adapter.last(); !strings.Contains(got, "status") {
		t.Fatalf("reply = %q, want the status panel", got)
	}
}

func TestDispatchIgnoresUnknownAndPlainText(t *testing.T) {
	t.Parallel()

	fx := newCmdFixture(t, nil)
	ctx := context.Background()
	if fx.mgr.Dispatch(ctx, groupCommand("/unknowncmd", 7)) {
		t.Fatal("unknown command must not be consumed")
	}
	if fx.mgr.Dispatch(ctx, groupCommand("hello there", 7)) {
		t.Fatal("plain text must not be consumed")
	}
}

func TestScopeFromRequest(t *testing.T) {
	t.Parallel()

	group := transport.ChatTarget{ChatID: 100}
	thread := transport.ChatTarget{ChatID: 100, ThreadID: 7}

	tests := []struct {
		name    string
		scope   string
		chat    transport.ChatTarget
		isGroup bool
		want    activity.Scope
		wantErr bool
	}{
		{name: "default is global", scope: "", chat: group, isGroup: true, want: activity.Global()},
		{name: "all is global", scope: "all", chat: group, isGroup: true, want: activity.Global()},
		{name: "here in plain group", scope: "here", chat: group, isGroup: true, want: activity.ChannelScope("100")},
		{name: "here in thread", scope: "here", chat: thread, isGroup: true, want: activity.ChannelScope("100:7")},
		{name: "chat widens thread", scope: "chat", chat: thread, isGroup: true, want: activity.GroupScope("100")},
		{name: "here in DM fails", scope: "here", chat: group, isGroup: false, wantErr: true},
		{name: "chat in DM fails", scope: "chat", chat: group, isGroup: false, wantErr: true},
		{name: "user scope", scope: "user:42", chat: group, isGroup: true, want: activity.UserScope("42")},
		{name: "user scope non-numeric", scope: "user:bob", chat: group, isGroup: true, wantErr: true},
		{name: "garbage", scope: "everything", chat: group, isGroup: true, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := &Request{
				Msg:   transport.Message{IsGroup: tt.isGroup},
				Chat:  tt.chat,
				Flags: map[string]string{"scope": tt.scope},
			}
			got, err := scopeFromRequest(req)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("want error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("scopeFromRequest: %v", err)
			}
			if got != tt.want {
				t.Fatalf("scope = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseHumanDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "5m", want: 5 * time.Minute},
		{in: "1h30m", want: 90 * time.Minute},
		{in: "5", want: 5 * time.Minute}, // bare numbers are minutes
		{in: "0", want: 0},
		{in: "-5", wantErr: true},
		{in: "-5m", wantErr: true},
		{in: "soon", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseHumanDuration(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseHumanDuration(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseHumanDuration(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("parseHumanDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
