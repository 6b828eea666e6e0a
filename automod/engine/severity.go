package engine

import (
	"fmt"
)

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) Valid() bool {
	_, ok := severityNames[s]
	return ok
}

func (s Severity) String() string {
	name, ok := severityNames[s]
	if !ok {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return name
}

func ParseSeverity(raw string) (Severity, error) {
	for sev, name := range severityNames {
		if name == raw {
			return sev, nil
		}
	}
	return SeverityLow, fmt.Errorf("unknown severity: %q", raw)
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity value: %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Static severity for each analyzer kind. Kinds absent here (link, mention) are auxiliary only.
var signalSeverity = map[SignalKind]Severity{
	SignalHarassment:    SeverityCritical,
	SignalSpam:          SeverityHigh,
	SignalProfanity:     SeverityMedium,
	SignalExcessiveCaps: SeverityMedium,
	SignalShortText:     SeverityLow,
}

// Combines analyzer signals in to a single severity, which is the maximum over all triggered signals (never an average). With nothing triggered the result is SeverityLow.
//
// Auxiliary flags are passed through for the rule evaluator.
func Aggregate(signals []Signal) (Severity, AuxFlags) {
	sev := SeverityLow
	var aux AuxFlags
	for _, s := range signals {
		if !s.Triggered {
			continue
		}
		switch s.Kind {
		case SignalLink:
			aux.HasLink = true
		case SignalMention:
			aux.HasMention = true
		case SignalShortText:
			aux.ShortText = true
		}
		if v, ok := signalSeverity[s.Kind]; ok && v > sev {
			sev = v
		}
	}
	return sev, aux
}
