package activity

import (
	"fmt"
	"time"

	"pulsebot/internal/transport"
)

// PayloadField is one rendered name/value pair; order is display order.
type PayloadField struct {
	Name  string
	Value string
}

// Payload is the structured notification handed to the sink. The sink owns
// turning it into platform text.
type Payload struct {
	Subscriber   int64
	Title        string
	Target       string
	Fields       []PayloadField
	Participants []Participant
	Summary      SummaryMode
	Chat         transport.ChatTarget
	At           time.Time
}

// Key identifies the emission for logging and delivery bookkeeping.
func (p Payload) Key() string {
	return fmt.Sprintf("%d/%s", p.Subscriber, p.Chat.Key())
}

func buildPayload(msg transport.Message, rule Rule, rate float64, parts []Participant, at time.Time) Payload {
	title := msg.ChatTitle
	if title == "" {
		title = msg.Chat.Key()
	}

	fields := []PayloadField{
		{Name: "Target", Value: rule.Scope.String()},
		{Name: "Threshold", Value: fmt.Sprintf("%.1f messages per minute", rule.Threshold)},
		{Name: "Cooldown", Value: rule.Cooldown.String()},
		{Name: "Lookback", Value: fmt.Sprintf("%d messages", rule.Lookback)},
		{Name: "Rate", Value: fmt.Sprintf("%.1f messages per minute", rate)},
	}

	return Payload{
		Subscriber:   rule.Subscriber,
		Title:        title + " is active!",
		Target:       rule.Scope.String(),
		Fields:       fields,
		Participants: parts,
		Summary:      rule.Summary,
		Chat:         msg.Chat,
		At:           at,
	}
}
