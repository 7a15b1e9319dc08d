package activity

import (
	"context"
	"strconv"

	"pulsebot/internal/transport"
)

// Participant is a distinct non-bot author seen in the lookback window.
type Participant struct {
	ID      int64
	Display string
}

func (p Participant) Key() string { return strconv.FormatInt(p.ID, 10) }

// ParticipantCounter derives the set of distinct non-bot authors in the
// lookback window of a chat.
type ParticipantCounter struct {
	src transport.HistorySource
}

func NewParticipantCounter(src transport.HistorySource) *ParticipantCounter {
	return &ParticipantCounter{src: src}
}

// Active returns the distinct non-bot authors in first-seen-in-fetch order.
// The order carries no meaning beyond display.
func (c *ParticipantCounter) Active(ctx context.Context, chat transport.ChatTarget, lookback int) ([]Participant, error) {
	msgs, err := c.src.Recent(ctx, chat, lookback)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(msgs))
	out := make([]Participant, 0, len(msgs))
	for _, m := range msgs {
		if m.FromBot {
			continue
		}
		if _, dup := seen[m.FromID]; dup {
			continue
		}
		seen[m.FromID] = struct{}{}

		display := m.FromDisplay
		if display == "" {
			display = m.FromUsername
		}
		if display == "" {
			display = strconv.FormatInt(m.FromID, 10)
		}
		out = append(out, Participant{ID: m.FromID, Display: display})
	}
	return out, nil
}
