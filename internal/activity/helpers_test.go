package activity

import (
	"context"
	"errors"
	"time"

	"pulsebot/internal/transport"
)

// fakeHistory serves canned windows keyed by chat, newest-first.
type fakeHistory struct {
	msgs map[string][]transport.Message
	err  error
}

func (f *fakeHistory) Recent(_ context.Context, chat transport.ChatTarget, limit int) ([]transport.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := f.msgs[chat.Key()]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

var errSourceDown = errors.New("source down")

// window builds n messages in chat spanning the given duration, newest-first,
// cycling authors. Bots get negative author ids via the bots set.
func window(chat transport.ChatTarget, n int, span time.Duration, authors []int64, bots map[int64]bool) []transport.Message {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]transport.Message, 0, n)
	for i := 0; i < n; i++ {
		var at time.Time
		if n > 1 {
			at = base.Add(-time.Duration(i) * span / time.Duration(n-1))
		} else {
			at = base
		}
		author := authors[i%len(authors)]
		out = append(out, transport.Message{
			ID:      n - i,
			Chat:    chat,
			FromID:  author,
			FromBot: bots[author],
			At:      at,
			IsGroup: true,
		})
	}
	return out
}
