package engine

import (
	"fmt"
	"strings"
)

const (
	RuleCriticalSeverity = "critical-severity"
	RuleHighSeverity     = "high-severity"
	RuleMediumSeverity   = "medium-severity"
	RuleShortText        = "short-text"
	RuleDefaultApprove   = "default-approve"
)

// Controls which platform action is taken for comments at destructive severity levels.
//
// Platform-specific overrides should be expressed as a distinct Policy value, not inferred inside the evaluator.
type Policy struct {
	Name              string
	DestructiveAction func(isOwnComment bool) Action
}

// Deletes our own comments, and hides everybody else's.
var DefaultPolicy = Policy{
	Name: "default",
	DestructiveAction: func(isOwn bool) Action {
		if isOwn {
			return ActionDelete
		}
		return ActionHide
	},
}

// Never deletes, even for own comments.
var HideOnlyPolicy = Policy{
	Name: "hide-only",
	DestructiveAction: func(isOwn bool) Action {
		return ActionHide
	},
}

func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(name) {
	case "", DefaultPolicy.Name:
		return DefaultPolicy, nil
	case HideOnlyPolicy.Name:
		return HideOnlyPolicy, nil
	default:
		return Policy{}, fmt.Errorf("unknown moderation policy: %q", name)
	}
}

type rule struct {
	name   string
	match  func(sev Severity, aux AuxFlags) bool
	action func(p Policy, isOwn bool) Action
}

func destructive(p Policy, isOwn bool) Action { return p.DestructiveAction(isOwn) }
func flag(Policy, bool) Action               { return ActionFlag }
func approve(Policy, bool) Action            { return ActionApprove }

// evaluated in order; first match wins. the last entry always matches.
var ruleTable = []rule{
	{RuleCriticalSeverity, func(s Severity, _ AuxFlags) bool { return s == SeverityCritical }, destructive},
	{RuleHighSeverity, func(s Severity, _ AuxFlags) bool { return s == SeverityHigh }, destructive},
	{RuleMediumSeverity, func(s Severity, _ AuxFlags) bool { return s == SeverityMedium }, flag},
	{RuleShortText, func(s Severity, aux AuxFlags) bool { return s == SeverityLow && aux.ShortText }, flag},
	{RuleDefaultApprove, func(Severity, AuxFlags) bool { return true }, approve},
}

// Maps a severity (plus auxiliary flags) to an action using the default policy. See Policy.Evaluate.
func Evaluate(sev Severity, aux AuxFlags, isOwnComment bool, signals []Signal) Decision {
	return DefaultPolicy.Evaluate(sev, aux, isOwnComment, signals)
}

// Runs the ordered rule table. The returned decision has Action, RuleTriggered, SeverityObserved and Reasoning set; the caller fills in comment identity and timestamp.
//
// Panics on an invalid severity value: that is a programming error, not a runtime condition.
func (p Policy) Evaluate(sev Severity, aux AuxFlags, isOwnComment bool, signals []Signal) Decision {
	if !sev.Valid() {
		panic(fmt.Sprintf("rule evaluation with invalid severity: %d", int(sev)))
	}
	if p.DestructiveAction == nil {
		p = DefaultPolicy
	}
	for _, r := range ruleTable {
		if !r.match(sev, aux) {
			continue
		}
		return Decision{
			Action:           r.action(p, isOwnComment),
			SeverityObserved: sev,
			RuleTriggered:    r.name,
			Reasoning:        Reasoning(signals),
		}
	}
	// unreachable: default-approve always matches
	panic("rule table exhausted")
}

// Human-readable summary of triggered analyzers, eg "harassment (1.00), spam (1.00)".
func Reasoning(signals []Signal) string {
	parts := []string{}
	for _, s := range signals {
		if !s.Triggered {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%.2f)", s.Kind, s.Confidence))
	}
	if len(parts) == 0 {
		return "no analyzer triggered"
	}
	return strings.Join(parts, ", ")
}
