package activity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ScopeKind enumerates what a rule's target refers to.
type ScopeKind string

const (
	ScopeGlobal  ScopeKind = "global"
	ScopeGroup   ScopeKind = "group"
	ScopeChannel ScopeKind = "channel"
	ScopeUser    ScopeKind = "user"
)

// Scope is a tagged target variant: Global carries no ID, the other kinds
// carry the identifier of the group, channel or user they narrow to.
// Modeling this as kind+id (instead of a nullable id plus a free-form kind
// string) makes an inconsistent pair unrepresentable through the constructors.
type Scope struct {
	Kind ScopeKind
	ID   string
}

func Global() Scope                { return Scope{Kind: ScopeGlobal} }
func GroupScope(id string) Scope   { return Scope{Kind: ScopeGroup, ID: id} }
func ChannelScope(id string) Scope { return Scope{Kind: ScopeChannel, ID: id} }
func UserScope(id string) Scope    { return Scope{Kind: ScopeUser, ID: id} }

// Key returns a stable identifier usable as a map/store key.
func (s Scope) Key() string {
	if s.Kind == ScopeGlobal || s.Kind == "" {
		return "global"
	}
	return string(s.Kind) + ":" + s.ID
}

func (s Scope) IsGlobal() bool { return s.Kind == ScopeGlobal || s.Kind == "" }

func (s Scope) String() string {
	if s.IsGlobal() {
		return "everything"
	}
	return string(s.Kind) + " " + s.ID
}

// ParseScopeKey is the inverse of Key.
func ParseScopeKey(key string) (Scope, error) {
	key = strings.TrimSpace(key)
	if key == "" || key == "global" {
		return Global(), nil
	}
	kind, id, ok := strings.Cut(key, ":")
	if !ok || id == "" {
		return Scope{}, fmt.Errorf("invalid scope key %q", key)
	}
	switch ScopeKind(kind) {
	case ScopeGroup, ScopeChannel, ScopeUser:
		return Scope{Kind: ScopeKind(kind), ID: id}, nil
	default:
		return Scope{}, fmt.Errorf("invalid scope kind %q", kind)
	}
}

// SummaryMode tells the sink how much supplementary detail to render.
// The core passes it through untouched.
type SummaryMode string

const (
	SummaryNone     SummaryMode = ""
	SummaryShort    SummaryMode = "short"
	SummaryLong     SummaryMode = "long"
	SummaryBulleted SummaryMode = "bulleted"
)

func ParseSummaryMode(s string) (SummaryMode, error) {
	switch m := SummaryMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SummaryNone, SummaryShort, SummaryLong, SummaryBulleted:
		return m, nil
	case "none":
		return SummaryNone, nil
	default:
		return SummaryNone, fmt.Errorf("invalid summary mode %q", s)
	}
}

// Default rule values, matching the command layer's defaults.
const (
	DefaultThreshold       = 1.0
	DefaultCooldown        = 5 * time.Minute
	DefaultLookback        = 10
	DefaultMinParticipants = 2
)

// Rule is a subscriber's standing notification configuration.
type Rule struct {
	Subscriber      int64
	Scope           Scope
	Threshold       float64 // messages per minute
	Cooldown        time.Duration
	Lookback        int
	MinParticipants int
	Summary         SummaryMode

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Normalize fills zero-valued tunables with defaults.
func (r *Rule) Normalize() {
	if r.Threshold <= 0 {
		r.Threshold = DefaultThreshold
	}
	if r.Cooldown <= 0 {
		r.Cooldown = DefaultCooldown
	}
	if r.Lookback <= 0 {
		r.Lookback = DefaultLookback
	}
	if r.MinParticipants <= 0 {
		r.MinParticipants = DefaultMinParticipants
	}
}

func (r Rule) Validate() error {
	if r.Subscriber == 0 {
		return errors.New("rule: subscriber is required")
	}
	if r.Threshold <= 0 {
		return errors.New("rule: threshold must be > 0")
	}
	if r.Cooldown < 0 {
		return errors.New("rule: cooldown must be >= 0")
	}
	if r.Lookback <= 0 {
		return errors.New("rule: lookback must be > 0")
	}
	if r.MinParticipants < 1 {
		return errors.New("rule: min participants must be >= 1")
	}
	if !r.Scope.IsGlobal() && r.Scope.ID == "" {
		return errors.New("rule: non-global scope requires a target id")
	}
	return nil
}
