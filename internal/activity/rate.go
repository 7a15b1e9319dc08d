package activity

import (
	"context"

	"pulsebot/internal/transport"
)

// RateEstimator computes a point-in-time messages-per-minute estimate over
// the lookback window of a chat. It is not a moving average; callers
// re-invoke it per incoming message.
type RateEstimator struct {
	src transport.HistorySource
}

func NewRateEstimator(src transport.HistorySource) *RateEstimator {
	return &RateEstimator{src: src}
}

// Estimate returns the current message rate for chat.
//
// ok is false when the window holds fewer than two messages or spans zero
// time; both mean "no signal", not an error. A non-nil error means the
// history source itself failed and the evaluation should be abandoned.
func (e *RateEstimator) Estimate(ctx context.Context, chat transport.ChatTarget, lookback int) (rate float64, ok bool, err error) {
	msgs, err := e.src.Recent(ctx, chat, lookback)
	if err != nil {
		return 0, false, err
	}
	if len(msgs) < 2 {
		return 0, false, nil
	}

	// Messages arrive newest-first.
	newest := msgs[0].At
	oldest := msgs[len(msgs)-1].At
	elapsed := newest.Sub(oldest).Minutes()
	if elapsed <= 0 {
		return 0, false, nil
	}
	return float64(len(msgs)-1) / elapsed, true, nil
}
