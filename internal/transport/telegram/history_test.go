package telegram

import (
	"testing"
	"time"

	"pulsebot/internal/transport"
)

func fill(h *chatHistory, chat transport.ChatTarget, n int) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		h.Record(transport.Message{
			ID:   i,
			Chat: chat,
			At:   base.Add(time.Duration(i) * time.Second),
		})
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	t.Parallel()

	chat := transport.ChatTarget{ChatID: 100}
	h := newChatHistory(10)
	fill(h, chat, 5)

	got := h.Recent(chat, 3)
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	for i, wantID := range []int{5, 4, 3} {
		if got[i].ID != wantID {
			t.Fatalf("got[%d].ID = %d, want %d", i, got[i].ID, wantID)
		}
	}
}

func TestHistoryRingWrap(t *testing.T) {
	t.Parallel()

	chat := transport.ChatTarget{ChatID: 100}
	h := newChatHistory(4)
	fill(h, chat, 10) // only 7..10 survive

	got := h.Recent(chat, 10)
	if len(got) != 4 {
		t.Fatalf("got %d messages, want 4", len(got))
	}
	for i, wantID := range []int{10, 9, 8, 7} {
		if got[i].ID != wantID {
			t.Fatalf("got[%d].ID = %d, want %d", i, got[i].ID, wantID)
		}
	}
}

func TestHistoryChatsAreIsolated(t *testing.T) {
	t.Parallel()

	a := transport.ChatTarget{ChatID: 100}
	bThread := transport.ChatTarget{ChatID: 100, ThreadID: 7}
	h := newChatHistory(10)
	fill(h, a, 3)

	if got := h.Recent(bThread, 10); len(got) != 0 {
		t.Fatalf("thread must not see the parent chat's ring, got %d", len(got))
	}
	if got := h.Recent(a, 10); len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
}

func TestHistoryUnknownChat(t *testing.T) {
	t.Parallel()

	h := newChatHistory(10)
	if got := h.Recent(transport.ChatTarget{ChatID: 1}, 5); got != nil {
		t.Fatalf("expected nil for unseen chat, got %v", got)
	}
}
