package notifier

import (
	"strings"
	"testing"
	"time"

	"pulsebot/internal/activity"
	"pulsebot/internal/transport"
)

func samplePayload(mode activity.SummaryMode) activity.Payload {
	return activity.Payload{
		Subscriber: 7,
		Title:      "general is active!",
		Target:     "everything",
		Fields: []activity.PayloadField{
			{Name: "Target", Value: "everything"},
			{Name: "Rate", Value: "4.5 messages per minute"},
		},
		Participants: []activity.Participant{
			{ID: 1, Display: "Alice"},
			{ID: 2, Display: "bob"},
		},
		Summary: mode,
		Chat:    transport.ChatTarget{ChatID: 100},
		At:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFormatPayloadDefault(t *testing.T) {
	t.Parallel()

	out := FormatPayload(samplePayload(activity.SummaryNone)).String()
	for _, want := range []string{
		"<b>general is active!</b>",
		"<b>Target</b>: everything",
		"<b>Rate</b>: 4.5 messages per minute",
		"<b>Active chatters</b>",
		`<a href="tg://user?id=1">Alice</a>, <a href="tg://user?id=2">bob</a>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatPayloadShort(t *testing.T) {
	t.Parallel()

	out := FormatPayload(samplePayload(activity.SummaryShort)).String()
	if !strings.Contains(out, "<b>Active chatters</b>: Alice, bob") {
		t.Fatalf("short mode must list plain names:\n%s", out)
	}
	if strings.Contains(out, "tg://user") {
		t.Fatalf("short mode must not mention users:\n%s", out)
	}
}

func TestFormatPayloadBulleted(t *testing.T) {
	t.Parallel()

	out := FormatPayload(samplePayload(activity.SummaryBulleted)).String()
	for _, want := range []string{
		"\u2022 " + `<a href="tg://user?id=1">Alice</a>`,
		"\u2022 " + `<a href="tg://user?id=2">bob</a>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatPayloadEscapesTitle(t *testing.T) {
	t.Parallel()

	p := samplePayload(activity.SummaryNone)
	p.Title = "dev <ops> is active!"
	out := FormatPayload(p).String()
	if !strings.Contains(out, "<b>dev &lt;ops&gt; is active!</b>") {
		t.Fatalf("title must be escaped:\n%s", out)
	}
}
