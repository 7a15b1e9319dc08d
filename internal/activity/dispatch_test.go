package activity

import (
	"context"
	"testing"
	"time"

	"pulsebot/internal/transport"
)

func TestShardIsStable(t *testing.T) {
	t.Parallel()

	keys := []string{"100", "100:7", "200", "-100500"}
	for _, key := range keys {
		first := shard(key, 4)
		if first < 0 || first >= 4 {
			t.Fatalf("shard(%q) = %d, out of range", key, first)
		}
		for i := 0; i < 10; i++ {
			if got := shard(key, 4); got != first {
				t.Fatalf("shard(%q) not stable: %d then %d", key, first, got)
			}
		}
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	history := &fakeHistory{msgs: map[string][]transport.Message{}}
	fx := newEvalFixture(t, history, nil)
	d := NewDispatcher(DispatcherConfig{Workers: 1, QueueSize: 1}, fx.ev, fx.ev.log)

	// Not started: the single shard queue holds one message, the second drops.
	msg := groupMsg(transport.ChatTarget{ChatID: 100}, 1)
	if !d.Submit(msg) {
		t.Fatal("first Submit must be accepted")
	}
	if d.Submit(msg) {
		t.Fatal("second Submit must drop when the shard queue is full")
	}
}

func TestDispatcherProcessesSubmitted(t *testing.T) {
	t.Parallel()

	chat := transport.ChatTarget{ChatID: 100}
	history := &fakeHistory{msgs: map[string][]transport.Message{
		chat.Key(): window(chat, 10, 2*time.Minute, []int64{1, 2, 3}, nil),
	}}
	rule := Rule{Subscriber: 7, Scope: Global(), Threshold: 1, Cooldown: 5 * time.Minute, Lookback: 10, MinParticipants: 2}
	fx := newEvalFixture(t, history, map[int64][]Rule{7: {rule}})

	d := NewDispatcher(DispatcherConfig{Workers: 2, QueueSize: 8}, fx.ev, fx.ev.log)
	d.Start(context.Background())
	defer d.Stop()

	if !d.Submit(groupMsg(chat, 1)) {
		t.Fatal("Submit must be accepted")
	}

	deadline := time.Now().Add(5 * time.Second)
	for fx.sink.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("dispatcher never evaluated the message")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
