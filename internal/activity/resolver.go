package activity

// EvalContext carries the scope identifiers of one incoming message.
type EvalContext struct {
	Channel string // chat+thread key
	Group   string // bare chat key
	Author  string // message author id
}

// scopePredicate reports whether a rule applies in the given context.
type scopePredicate func(r Rule, ctx EvalContext) bool

func matchChannel(r Rule, ctx EvalContext) bool {
	return r.Scope.Kind == ScopeChannel && r.Scope.ID == ctx.Channel
}

func matchUser(r Rule, ctx EvalContext) bool {
	return r.Scope.Kind == ScopeUser && r.Scope.ID == ctx.Author
}

func matchGroup(r Rule, ctx EvalContext) bool {
	return r.Scope.Kind == ScopeGroup && r.Scope.ID == ctx.Group
}

func matchGlobal(r Rule, ctx EvalContext) bool {
	return r.Scope.IsGlobal()
}

// scopePriority is the explicit tie-break order: most specific first.
// A subscriber holds at most one rule per scope (store invariant), so the
// first predicate with a match decides.
var scopePriority = []scopePredicate{
	matchChannel,
	matchUser,
	matchGroup,
	matchGlobal,
}

// Resolve selects the single highest-priority rule applicable in ctx.
// ok is false when no rule matches at any level.
func Resolve(rules []Rule, ctx EvalContext) (Rule, bool) {
	for _, pred := range scopePriority {
		for _, r := range rules {
			if pred(r, ctx) {
				return r, true
			}
		}
	}
	return Rule{}, false
}
