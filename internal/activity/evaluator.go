package activity

import (
	"context"
	"strconv"
	"time"

	"pulsebot/internal/eventbus"
	"pulsebot/internal/transport"
	logx "pulsebot/pkg/logx"
)

// Bus topics published by the evaluator.
const (
	TopicNotified   = "activity.notified"
	TopicSuppressed = "activity.suppressed"
)

// Outcome is the result of evaluating one message for one subscriber.
// Negative outcomes are expected control flow, not errors.
type Outcome string

const (
	OutcomeNotified           Outcome = "notified"
	OutcomeNoRule             Outcome = "no_rule"
	OutcomeNoSignal           Outcome = "no_signal"
	OutcomeBelowThreshold     Outcome = "below_threshold"
	OutcomeTooFewParticipants Outcome = "too_few_participants"
	OutcomeCoolingDown        Outcome = "cooling_down"
	OutcomeSinkFailed         Outcome = "sink_failed"
	OutcomeAbandoned          Outcome = "abandoned"
)

// RuleSource is the read-only rule store view the evaluator needs.
type RuleSource interface {
	ListRulesFor(ctx context.Context, subscriber int64) ([]Rule, error)
}

// Sink accepts a rendered notification payload for delivery to the
// subscriber's private chat.
type Sink interface {
	Deliver(ctx context.Context, p Payload) error
}

// BusEvent is the Data carried on TopicNotified/TopicSuppressed.
type BusEvent struct {
	Subscriber int64   `json:"subscriber"`
	Chat       string  `json:"chat"`
	Scope      string  `json:"scope"`
	Outcome    string  `json:"outcome"`
	Rate       float64 `json:"rate,omitempty"`
}

// Evaluator orchestrates the per-message pipeline: resolve rule, estimate
// rate, count participants, pass the cooldown gate, deliver.
type Evaluator struct {
	rules RuleSource
	index *SubscriberIndex
	rate  *RateEstimator
	parts *ParticipantCounter
	gate  *CooldownGate
	sink  Sink
	bus   eventbus.Bus
	log   logx.Logger
	clock func() time.Time
}

// EvaluatorDeps bundles the evaluator's collaborators.
type EvaluatorDeps struct {
	Rules   RuleSource
	Index   *SubscriberIndex
	History transport.HistorySource
	Gate    *CooldownGate
	Sink    Sink
	Bus     eventbus.Bus
	Log     logx.Logger
	Clock   func() time.Time // nil means time.Now
}

func NewEvaluator(d EvaluatorDeps) *Evaluator {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	return &Evaluator{
		rules: d.Rules,
		index: d.Index,
		rate:  NewRateEstimator(d.History),
		parts: NewParticipantCounter(d.History),
		gate:  d.Gate,
		sink:  d.Sink,
		bus:   d.Bus,
		log:   d.Log,
		clock: d.Clock,
	}
}

// OnMessage evaluates one incoming group message against every indexed
// subscriber. It never returns an error; failures are logged and the message
// is dropped (at-most-once evaluation).
func (ev *Evaluator) OnMessage(ctx context.Context, msg transport.Message) {
	if msg.FromBot || !msg.IsGroup {
		return
	}
	ectx := EvalContext{
		Channel: msg.Chat.Key(),
		Group:   msg.Chat.Group().Key(),
		Author:  strconv.FormatInt(msg.FromID, 10),
	}
	for _, sub := range ev.index.Subscribers() {
		out, err := ev.evaluateFor(ctx, sub, msg, ectx)
		ev.report(sub, msg, out, err)
	}
}

// evaluateFor runs the short-circuit pipeline for a single subscriber.
func (ev *Evaluator) evaluateFor(ctx context.Context, subscriber int64, msg transport.Message, ectx EvalContext) (Outcome, error) {
	rules, err := ev.rules.ListRulesFor(ctx, subscriber)
	if err != nil {
		return OutcomeAbandoned, err
	}
	if len(rules) == 0 {
		return OutcomeNoRule, nil
	}

	rule, ok := Resolve(rules, ectx)
	if !ok {
		return OutcomeNoRule, nil
	}

	rate, ok, err := ev.rate.Estimate(ctx, msg.Chat, rule.Lookback)
	if err != nil {
		return OutcomeAbandoned, err
	}
	if !ok {
		return OutcomeNoSignal, nil
	}
	if rate < rule.Threshold {
		return OutcomeBelowThreshold, nil
	}

	parts, err := ev.parts.Active(ctx, msg.Chat, rule.Lookback)
	if err != nil {
		return OutcomeAbandoned, err
	}
	if len(parts) < rule.MinParticipants {
		return OutcomeTooFewParticipants, nil
	}

	// All I/O is done before the gate; the check-and-set itself holds the
	// only lock, and only briefly.
	if !ev.gate.TryAcquire(subscriber, rule.Scope, rule.Cooldown) {
		return OutcomeCoolingDown, nil
	}

	payload := buildPayload(msg, rule, rate, parts, ev.clock())
	if err := ev.sink.Deliver(ctx, payload); err != nil {
		// The cooldown stays consumed: a failed delivery must not turn into
		// a hammering loop against an unreachable subscriber.
		return OutcomeSinkFailed, err
	}
	ev.publish(TopicNotified, subscriber, msg, rule.Scope, OutcomeNotified, rate)
	return OutcomeNotified, nil
}

func (ev *Evaluator) report(subscriber int64, msg transport.Message, out Outcome, err error) {
	switch out {
	case OutcomeNotified:
		ev.log.Info("notification sent",
			logx.Int64("subscriber", subscriber),
			logx.String("chat", msg.Chat.Key()),
		)
	case OutcomeSinkFailed:
		ev.log.Warn("notification delivery failed",
			logx.Int64("subscriber", subscriber),
			logx.String("chat", msg.Chat.Key()),
			logx.Err(err),
		)
		ev.publish(TopicSuppressed, subscriber, msg, Scope{}, out, 0)
	case OutcomeAbandoned:
		ev.log.Warn("evaluation abandoned",
			logx.Int64("subscriber", subscriber),
			logx.String("chat", msg.Chat.Key()),
			logx.Err(err),
		)
	case OutcomeCoolingDown, OutcomeTooFewParticipants, OutcomeBelowThreshold:
		ev.log.Debug("notification suppressed",
			logx.Int64("subscriber", subscriber),
			logx.String("chat", msg.Chat.Key()),
			logx.String("outcome", string(out)),
		)
		ev.publish(TopicSuppressed, subscriber, msg, Scope{}, out, 0)
	}
}

func (ev *Evaluator) publish(topic string, subscriber int64, msg transport.Message, scope Scope, out Outcome, rate float64) {
	if ev.bus == nil {
		return
	}
	ev.bus.Publish(eventbus.Event{
		Type: topic,
		Data: BusEvent{
			Subscriber: subscriber,
			Chat:       msg.Chat.Key(),
			Scope:      scope.Key(),
			Outcome:    string(out),
			Rate:       rate,
		},
	})
}
