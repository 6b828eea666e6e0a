// Independent, pure comment analyzers, each producing a single signal.
//
// Analyzers see the comment text after markup is stripped. They have no side effects and are safe to run concurrently, both across comments and across analyzers for one comment.
package analyzer

import (
	"strings"
	"sync"

	"github.com/moderation-ai/modai/automod/engine"
	"github.com/moderation-ai/modai/automod/helpers"
	"github.com/moderation-ai/modai/automod/keyword"
)

// Preprocessed views of a comment's text, computed once per comment and shared by all analyzers.
type Text struct {
	// markup stripped, whitespace collapsed, case preserved
	Stripped string
	// Stripped, lower-cased and unicode folded
	Folded string
	// whitespace-delimited words of Stripped, with edge punctuation trimmed and folded
	Tokens []string
	// whitespace-delimited word count of Stripped
	WordCount int
}

func NewText(raw string) Text {
	stripped := helpers.StripHTML(raw)
	return Text{
		Stripped:  stripped,
		Folded:    keyword.Fold(stripped),
		Tokens:    keyword.TokenizeWords(stripped),
		WordCount: len(strings.Fields(stripped)),
	}
}

type Analyzer interface {
	Kind() engine.SignalKind
	Analyze(t Text) engine.Signal
}

// An ordered collection of analyzers. Signals are always returned in analyzer order, whether or not they ran in parallel.
type Set struct {
	Analyzers []Analyzer
	// run each analyzer in its own goroutine
	Parallel bool
}

type Options struct {
	SpamPhrases    []string
	Profanity      []string
	Harassment     []Pattern
	CapsThreshold  float64
	ShortTextWords int
}

// Builds the standard analyzer set: spam, profanity, harassment, link, mention, excessive caps, short text.
func NewSet(opts Options) *Set {
	return &Set{
		Analyzers: []Analyzer{
			NewSpamAnalyzer(opts.SpamPhrases),
			NewProfanityAnalyzer(opts.Profanity),
			&HarassmentAnalyzer{Patterns: opts.Harassment},
			LinkAnalyzer{},
			MentionAnalyzer{},
			CapsAnalyzer{Threshold: opts.CapsThreshold},
			ShortTextAnalyzer{MinWords: opts.ShortTextWords},
		},
	}
}

func (s *Set) Analyze(c engine.Comment) []engine.Signal {
	t := NewText(c.Text)
	out := make([]engine.Signal, len(s.Analyzers))
	if !s.Parallel {
		for i, a := range s.Analyzers {
			out[i] = a.Analyze(t)
		}
		return out
	}

	var wg sync.WaitGroup
	for i, a := range s.Analyzers {
		wg.Add(1)
		go func(i int, a Analyzer) {
			defer wg.Done()
			out[i] = a.Analyze(t)
		}(i, a)
	}
	wg.Wait()
	return out
}

func (s *Set) Add(a Analyzer) {
	s.Analyzers = append(s.Analyzers, a)
}
