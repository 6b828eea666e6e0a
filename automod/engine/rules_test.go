package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateTable(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		sev    Severity
		aux    AuxFlags
		isOwn  bool
		action Action
		rule   string
	}{
		{sev: SeverityCritical, action: ActionHide, rule: RuleCriticalSeverity},
		{sev: SeverityCritical, isOwn: true, action: ActionDelete, rule: RuleCriticalSeverity},
		{sev: SeverityHigh, action: ActionHide, rule: RuleHighSeverity},
		{sev: SeverityHigh, isOwn: true, action: ActionDelete, rule: RuleHighSeverity},
		{sev: SeverityMedium, action: ActionFlag, rule: RuleMediumSeverity},
		{sev: SeverityMedium, aux: AuxFlags{ShortText: true}, action: ActionFlag, rule: RuleMediumSeverity},
		{sev: SeverityLow, aux: AuxFlags{ShortText: true}, action: ActionFlag, rule: RuleShortText},
		{sev: SeverityLow, aux: AuxFlags{HasLink: true, HasMention: true}, action: ActionApprove, rule: RuleDefaultApprove},
		{sev: SeverityLow, isOwn: true, action: ActionApprove, rule: RuleDefaultApprove},
	}

	for _, fix := range fixtures {
		d := Evaluate(fix.sev, fix.aux, fix.isOwn, nil)
		assert.Equal(fix.action, d.Action, fix.rule)
		assert.Equal(fix.rule, d.RuleTriggered)
		assert.Equal(fix.sev, d.SeverityObserved)
		assert.Equal("no analyzer triggered", d.Reasoning)
	}
}

func TestEvaluatePolicy(t *testing.T) {
	assert := assert.New(t)

	d := HideOnlyPolicy.Evaluate(SeverityCritical, AuxFlags{}, true, nil)
	assert.Equal(ActionHide, d.Action)

	// zero policy falls back to the default
	d = Policy{}.Evaluate(SeverityHigh, AuxFlags{}, true, nil)
	assert.Equal(ActionDelete, d.Action)
}

func TestEvaluatePanicsOnInvalidSeverity(t *testing.T) {
	assert := assert.New(t)

	assert.Panics(func() { Evaluate(Severity(42), AuxFlags{}, false, nil) })
	assert.Panics(func() { Evaluate(Severity(-1), AuxFlags{}, false, nil) })
}

func TestReasoning(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("no analyzer triggered", Reasoning(nil))
	assert.Equal("no analyzer triggered", Reasoning([]Signal{{Kind: SignalSpam, Confidence: 0.3}}))
	assert.Equal("harassment (1.00), spam (1.00)", Reasoning([]Signal{
		sig(SignalHarassment),
		{Kind: SignalLink},
		sig(SignalSpam),
	}))
	assert.Equal("excessive_caps (0.83)", Reasoning([]Signal{
		{Kind: SignalExcessiveCaps, Triggered: true, Confidence: 0.8333},
	}))
}

func TestNoSignalsApproves(t *testing.T) {
	assert := assert.New(t)

	signals := []Signal{{Kind: SignalSpam}, {Kind: SignalHarassment}, {Kind: SignalShortText}}
	sev, aux := Aggregate(signals)
	assert.Equal(ActionApprove, Evaluate(sev, aux, false, signals).Action)

	signals = append(signals, sig(SignalShortText))
	sev, aux = Aggregate(signals)
	assert.Equal(ActionFlag, Evaluate(sev, aux, false, signals).Action)
}

func TestPolicyByName(t *testing.T) {
	assert := assert.New(t)

	p, err := PolicyByName("")
	assert.NoError(err)
	assert.Equal("default", p.Name)
	p, err = PolicyByName("Hide-Only")
	assert.NoError(err)
	assert.Equal(ActionHide, p.DestructiveAction(true))
	_, err = PolicyByName("ban-everyone")
	assert.Error(err)
}
