package notifier

import (
	"context"

	"pulsebot/internal/activity"
	"pulsebot/pkg/tgui"
)

// PayloadSink adapts the delivery pipeline to the evaluator's Sink interface.
type PayloadSink struct {
	svc *Service
}

func NewPayloadSink(svc *Service) *PayloadSink { return &PayloadSink{svc: svc} }

func (ps *PayloadSink) Deliver(ctx context.Context, p activity.Payload) error {
	return ps.svc.Notify(ctx, Notification{
		Subscriber: p.Subscriber,
		Text:       FormatPayload(p).String(),
		Key:        p.Key(),
	})
}

// FormatPayload renders a notification payload as Telegram HTML.
// The summary mode controls how much participant detail is included.
func FormatPayload(p activity.Payload) tgui.H {
	lines := []tgui.H{tgui.B(p.Title), ""}

	for _, f := range p.Fields {
		lines = append(lines, tgui.KV(f.Name, f.Value))
	}

	switch p.Summary {
	case activity.SummaryShort:
		lines = append(lines, "", tgui.KV("Active chatters", shortList(p.Participants)))
	case activity.SummaryBulleted:
		lines = append(lines, "", tgui.B("Active chatters"))
		for _, u := range p.Participants {
			lines = append(lines, tgui.H("• ")+tgui.Mention(u.Display, u.ID))
		}
	default: // SummaryNone, SummaryLong
		lines = append(lines, "", tgui.B("Active chatters"))
		parts := make([]tgui.H, 0, len(p.Participants))
		for _, u := range p.Participants {
			parts = append(parts, tgui.Mention(u.Display, u.ID))
		}
		lines = append(lines, tgui.JoinH(", ", parts...))
	}

	return tgui.Lines(lines...)
}

func shortList(parts []activity.Participant) string {
	s := ""
	for i, u := range parts {
		if i > 0 {
			s += ", "
		}
		s += u.Display
	}
	return s
}
