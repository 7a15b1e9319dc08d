package telegram

import (
	"sync"

	"pulsebot/internal/transport"
)

// chatHistory is a bounded in-memory ring of recent messages per chat.
//
// The Bot API offers no history fetch, so this ring, filled by incoming
// updates, is what serves the evaluator's lookback window. A chat the bot
// just joined starts empty and fills as messages arrive.
type chatHistory struct {
	mu   sync.RWMutex
	size int
	byID map[string]*ring
}

type ring struct {
	buf  []transport.Message
	next int
	full bool
}

func newChatHistory(size int) *chatHistory {
	if size <= 0 {
		size = 100
	}
	return &chatHistory{size: size, byID: map[string]*ring{}}
}

func (h *chatHistory) Record(m transport.Message) {
	key := m.Chat.Key()

	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.byID[key]
	if !ok {
		r = &ring{buf: make([]transport.Message, h.size)}
		h.byID[key] = r
	}
	r.buf[r.next] = m
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// Recent returns up to limit messages for chat, newest-first.
func (h *chatHistory) Recent(chat transport.ChatTarget, limit int) []transport.Message {
	if limit <= 0 {
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.byID[chat.Key()]
	if !ok {
		return nil
	}

	n := r.next
	if r.full {
		n = len(r.buf)
	}
	if limit > n {
		limit = n
	}

	out := make([]transport.Message, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}
