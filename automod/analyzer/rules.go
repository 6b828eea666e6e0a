package analyzer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/moderation-ai/modai/automod/engine"
	"github.com/moderation-ai/modai/automod/helpers"
	"github.com/moderation-ai/modai/automod/keyword"
)

func miss(kind engine.SignalKind) engine.Signal {
	return engine.Signal{Kind: kind}
}

func hit(kind engine.SignalKind, detail string) engine.Signal {
	return engine.Signal{Kind: kind, Triggered: true, Confidence: 1.0, Detail: detail}
}

// Case-insensitive substring match against a phrase list.
type SpamAnalyzer struct {
	phrases []string
}

func NewSpamAnalyzer(phrases []string) *SpamAnalyzer {
	folded := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if f := keyword.Fold(p); f != "" {
			folded = append(folded, f)
		}
	}
	return &SpamAnalyzer{phrases: folded}
}

func (a *SpamAnalyzer) Kind() engine.SignalKind { return engine.SignalSpam }

func (a *SpamAnalyzer) Analyze(t Text) engine.Signal {
	for _, p := range a.phrases {
		if strings.Contains(t.Folded, p) {
			return hit(engine.SignalSpam, p)
		}
	}
	return miss(engine.SignalSpam)
}

// Exact token match against a word set.
type ProfanityAnalyzer struct {
	words keyword.Set
}

func NewProfanityAnalyzer(words []string) *ProfanityAnalyzer {
	return &ProfanityAnalyzer{words: keyword.NewSet(words)}
}

func (a *ProfanityAnalyzer) Kind() engine.SignalKind { return engine.SignalProfanity }

func (a *ProfanityAnalyzer) Analyze(t Text) engine.Signal {
	if tok, ok := a.words.FirstMatch(t.Tokens); ok {
		return hit(engine.SignalProfanity, tok)
	}
	return miss(engine.SignalProfanity)
}

// A compiled harassment pattern, along with its source text (used as the signal detail).
type Pattern struct {
	Source string
	Regexp *regexp.Regexp
}

// Compiles patterns case-insensitive.
func CompilePatterns(srcs []string) ([]Pattern, error) {
	out := make([]Pattern, 0, len(srcs))
	for _, src := range srcs {
		re, err := regexp.Compile("(?i)" + src)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", src, err)
		}
		out = append(out, Pattern{Source: src, Regexp: re})
	}
	return out, nil
}

func MustCompilePatterns(srcs []string) []Pattern {
	out, err := CompilePatterns(srcs)
	if err != nil {
		panic(err)
	}
	return out
}

type HarassmentAnalyzer struct {
	Patterns []Pattern
}

func (a *HarassmentAnalyzer) Kind() engine.SignalKind { return engine.SignalHarassment }

func (a *HarassmentAnalyzer) Analyze(t Text) engine.Signal {
	for _, p := range a.Patterns {
		if p.Regexp.MatchString(t.Stripped) {
			return hit(engine.SignalHarassment, p.Source)
		}
	}
	return miss(engine.SignalHarassment)
}

type LinkAnalyzer struct{}

func (LinkAnalyzer) Kind() engine.SignalKind { return engine.SignalLink }

func (LinkAnalyzer) Analyze(t Text) engine.Signal {
	if urls := helpers.ExtractTextURLs(t.Stripped); len(urls) > 0 {
		return hit(engine.SignalLink, helpers.NormalizeURL(urls[0]))
	}
	return miss(engine.SignalLink)
}

type MentionAnalyzer struct{}

func (MentionAnalyzer) Kind() engine.SignalKind { return engine.SignalMention }

func (MentionAnalyzer) Analyze(t Text) engine.Signal {
	if handles := helpers.ExtractMentions(t.Stripped); len(handles) > 0 {
		return hit(engine.SignalMention, "@"+handles[0])
	}
	return miss(engine.SignalMention)
}

// Triggers when the uppercase fraction of letters exceeds Threshold. Text without letters never triggers.
type CapsAnalyzer struct {
	Threshold float64
}

func (CapsAnalyzer) Kind() engine.SignalKind { return engine.SignalExcessiveCaps }

func (a CapsAnalyzer) Analyze(t Text) engine.Signal {
	letters, upper := 0, 0
	for _, r := range t.Stripped {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return miss(engine.SignalExcessiveCaps)
	}
	ratio := float64(upper) / float64(letters)
	return engine.Signal{
		Kind:       engine.SignalExcessiveCaps,
		Triggered:  ratio > a.Threshold,
		Confidence: ratio,
	}
}

// Triggers when the comment has fewer than MinWords words.
type ShortTextAnalyzer struct {
	MinWords int
}

func (ShortTextAnalyzer) Kind() engine.SignalKind { return engine.SignalShortText }

func (a ShortTextAnalyzer) Analyze(t Text) engine.Signal {
	if t.WordCount >= a.MinWords {
		return miss(engine.SignalShortText)
	}
	return engine.Signal{
		Kind:       engine.SignalShortText,
		Triggered:  true,
		Confidence: 1 - float64(t.WordCount)/float64(a.MinWords),
		Detail:     fmt.Sprintf("%d words", t.WordCount),
	}
}

// Adapts an external scoring function (eg, an ML classifier) in to an analyzer.
type OracleAnalyzer struct {
	SignalKind engine.SignalKind
	Score      func(text string) float64
	Threshold  float64
}

func (a OracleAnalyzer) Kind() engine.SignalKind { return a.SignalKind }

func (a OracleAnalyzer) Analyze(t Text) engine.Signal {
	score := a.Score(t.Stripped)
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}
	return engine.Signal{
		Kind:       a.SignalKind,
		Triggered:  score >= a.Threshold,
		Confidence: score,
		Detail:     "oracle",
	}
}
