package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pulsebot/internal/activity"
	"pulsebot/internal/storage"
	"pulsebot/pkg/tgui"
)

// Deps are the collaborators the rule-management handlers need.
type Deps struct {
	Store storage.Store
	Index *activity.SubscriberIndex
	Gate  *activity.CooldownGate
}

// RegisterAll wires up the bot's command surface.
func RegisterAll(m *Manager, d Deps) {
	m.Register(
		Command{
			Name:        "notify",
			Description: "Create or update an activity notification rule",
			Usage:       "/notify [threshold] [--cooldown 5m] [--lookback 10] [--min-users 2] [--scope here|chat|all|user:<id>] [--summary short|long|bulleted]",
			Access:      AccessEveryone,
			Handle:      d.handleNotify,
		},
		Command{
			Name:        "rules",
			Description: "List your notification rules",
			Access:      AccessEveryone,
			Handle:      d.handleRules,
		},
		Command{
			Name:        "forget",
			Description: "Delete a notification rule",
			Usage:       "/forget [--scope here|chat|all|user:<id>]",
			Access:      AccessEveryone,
			Handle:      d.handleForget,
		},
		Command{
			Name:        "start",
			Description: "Show what this bot does",
			Access:      AccessEveryone,
			Handle:      handleStart,
		},
		Command{
			Name:        "status",
			Description: "Show runtime counters",
			Access:      AccessOwnerOnly,
			Handle:      d.handleStatus,
		},
	)
}

func (d Deps) handleNotify(ctx context.Context, req *Request) error {
	rule := activity.Rule{Subscriber: req.FromID}

	if len(req.Args) > 0 {
		v, err := strconv.ParseFloat(req.Args[0], 64)
		if err != nil || v <= 0 {
			return req.Reply(ctx, tgui.Esc("Threshold must be a positive number of messages per minute."))
		}
		rule.Threshold = v
	}

	if raw, ok := req.Flags["cooldown"]; ok {
		dur, err := parseHumanDuration(raw)
		if err != nil {
			return req.Reply(ctx, tgui.Esc("Cooldown must be a duration like 5m or 1h."))
		}
		rule.Cooldown = dur
	}
	if raw, ok := req.Flags["lookback"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return req.Reply(ctx, tgui.Esc("Lookback must be a positive message count."))
		}
		rule.Lookback = n
	}
	if raw, ok := req.Flags["min-users"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return req.Reply(ctx, tgui.Esc("Minimum users must be at least 1."))
		}
		rule.MinParticipants = n
	}
	if raw, ok := req.Flags["summary"]; ok {
		mode, err := activity.ParseSummaryMode(raw)
		if err != nil {
			return req.Reply(ctx, tgui.Esc("Summary must be one of: short, long, bulleted."))
		}
		rule.Summary = mode
	}

	scope, err := scopeFromRequest(req)
	if err != nil {
		return req.Reply(ctx, tgui.Esc(err.Error()))
	}
	rule.Scope = scope
	rule.Normalize()

	created, err := d.Store.UpsertRule(ctx, rule)
	if err != nil {
		return fmt.Errorf("upsert rule: %w", err)
	}
	d.Index.Add(req.FromID)

	verb := "updated"
	if created {
		verb = "created"
	}
	return req.Reply(ctx, tgui.Lines(
		tgui.B("Notification settings "+verb+"!"),
		"",
		ruleLines(rule),
	))
}

func (d Deps) handleRules(ctx context.Context, req *Request) error {
	rules, err := d.Store.ListRulesFor(ctx, req.FromID)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}
	if len(rules) == 0 {
		return req.Reply(ctx, tgui.Esc("You have no notification rules. Create one with /notify."))
	}

	lines := []tgui.H{tgui.B("Your notification rules"), ""}
	for _, r := range rules {
		lines = append(lines, ruleLines(r), "")
	}
	return req.Reply(ctx, tgui.Lines(lines...))
}

func (d Deps) handleForget(ctx context.Context, req *Request) error {
	scope, err := scopeFromRequest(req)
	if err != nil {
		return req.Reply(ctx, tgui.Esc(err.Error()))
	}

	ok, err := d.Store.DeleteRule(ctx, req.FromID, scope)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if !ok {
		return req.Reply(ctx, tgui.Esc("No rule found for "+scope.String()+"."))
	}

	// Drop the subscriber from the index only when no rules remain.
	remaining, err := d.Store.ListRulesFor(ctx, req.FromID)
	if err == nil && len(remaining) == 0 {
		d.Index.Remove(req.FromID)
	}
	return req.Reply(ctx, tgui.Esc("Rule for "+scope.String()+" deleted."))
}

func (d Deps) handleStatus(ctx context.Context, req *Request) error {
	return req.Reply(ctx, tgui.Lines(
		tgui.B("pulsebot status"),
		tgui.KV("Subscribers with rules", strconv.Itoa(d.Index.Len())),
		tgui.KV("Tracked cooldown keys", strconv.Itoa(d.Gate.Len())),
	))
}

func handleStart(ctx context.Context, req *Request) error {
	return req.Reply(ctx, tgui.Lines(
		tgui.B("pulsebot"),
		tgui.Esc("I watch group chats and DM you when one gets busy."),
		"",
		tgui.Esc("Set a rule with /notify, list them with /rules, drop one with /forget."),
	))
}

// scopeFromRequest maps the --scope flag onto a rule scope using the chat
// the command was issued from as context.
func scopeFromRequest(req *Request) (activity.Scope, error) {
	raw := strings.ToLower(strings.TrimSpace(req.Flags["scope"]))
	switch {
	case raw == "" || raw == "all":
		return activity.Global(), nil
	case raw == "here":
		if !req.Msg.IsGroup {
			return activity.Scope{}, fmt.Errorf("--scope here only works inside a group chat")
		}
		return activity.ChannelScope(req.Chat.Key()), nil
	case raw == "chat":
		if !req.Msg.IsGroup {
			return activity.Scope{}, fmt.Errorf("--scope chat only works inside a group chat")
		}
		return activity.GroupScope(req.Chat.Group().Key()), nil
	case strings.HasPrefix(raw, "user:"):
		id := strings.TrimPrefix(raw, "user:")
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			return activity.Scope{}, fmt.Errorf("user scope needs a numeric id, e.g. user:12345")
		}
		return activity.UserScope(id), nil
	default:
		return activity.Scope{}, fmt.Errorf("scope must be one of: here, chat, all, user:<id>")
	}
}

func ruleLines(r activity.Rule) tgui.H {
	return tgui.Lines(
		tgui.KV("Target", r.Scope.String()),
		tgui.KV("Threshold", tgui.Pluralize(r.Threshold, "message")+" per minute"),
		tgui.KV("Cooldown", r.Cooldown.String()),
		tgui.KV("Lookback", tgui.PluralizeInt(r.Lookback, "message")),
		tgui.KV("Users", strconv.Itoa(r.MinParticipants)+" minimum"),
		tgui.KV("Summary", summaryLabel(r.Summary)),
	)
}

func summaryLabel(m activity.SummaryMode) string {
	if m == activity.SummaryNone {
		return "none"
	}
	return string(m)
}

// parseHumanDuration accepts Go durations ("5m", "1h30m") and bare minutes ("5").
func parseHumanDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration")
		}
		return time.Duration(n) * time.Minute, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return d, nil
}
