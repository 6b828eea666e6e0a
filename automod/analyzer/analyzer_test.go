package analyzer

import (
	"testing"

	"github.com/moderation-ai/modai/automod/engine"

	"github.com/stretchr/testify/assert"
)

var testPatterns = []string{
	`\b(you are|you're|ur)\s+(stupid|idiot|moron|loser)\b`,
	`\b(you|ur)\s+(stupid|idiot|moron|loser)\b`,
	`\b(shut up|go away)\b`,
}

func testSet() *Set {
	return NewSet(Options{
		SpamPhrases:    []string{"free money", "Visit My"},
		Profanity:      []string{"crap", "damn"},
		Harassment:     MustCompilePatterns(testPatterns),
		CapsThreshold:  0.7,
		ShortTextWords: 2,
	})
}

func triggered(signals []engine.Signal) map[engine.SignalKind]engine.Signal {
	out := map[engine.SignalKind]engine.Signal{}
	for _, s := range signals {
		if s.Triggered {
			out[s.Kind] = s
		}
	}
	return out
}

func TestAnalyzeFixtures(t *testing.T) {
	assert := assert.New(t)
	set := testSet()

	fixtures := []struct {
		text  string
		kinds []engine.SignalKind
	}{
		{text: "This is stupid, you idiot", kinds: []engine.SignalKind{engine.SignalHarassment}},
		{text: "click here for free money!!!", kinds: []engine.SignalKind{engine.SignalSpam}},
		{text: "ok", kinds: []engine.SignalKind{engine.SignalShortText}},
		{text: "a perfectly reasonable comment", kinds: []engine.SignalKind{}},
		{text: "well that is CRAP honestly", kinds: []engine.SignalKind{engine.SignalProfanity}},
		{text: "scrapbooking is fun", kinds: []engine.SignalKind{}},
		{text: "THIS IS SO LOUD", kinds: []engine.SignalKind{engine.SignalExcessiveCaps}},
		{text: "read https://example.com/page now", kinds: []engine.SignalKind{engine.SignalLink}},
		{text: "example.com has no scheme", kinds: []engine.SignalKind{}},
		{text: "thanks @alice for sharing", kinds: []engine.SignalKind{engine.SignalMention}},
		{text: "<p>You are <b>STUPID</b></p>", kinds: []engine.SignalKind{engine.SignalHarassment}},
		{text: "<b>ok</b> <i></i>", kinds: []engine.SignalKind{engine.SignalShortText}},
		{text: "12345 67890", kinds: []engine.SignalKind{}},
		{text: "", kinds: []engine.SignalKind{engine.SignalShortText}},
	}

	for _, fix := range fixtures {
		got := triggered(set.Analyze(engine.Comment{Text: fix.text}))
		assert.Equal(len(fix.kinds), len(got), fix.text)
		for _, k := range fix.kinds {
			assert.Contains(got, k, fix.text)
		}
	}
}

func TestAnalyzeStableOrder(t *testing.T) {
	assert := assert.New(t)

	set := testSet()
	c := engine.Comment{Text: "SHUT UP and visit my page at https://spam.example @bob"}
	serial := set.Analyze(c)

	set.Parallel = true
	for i := 0; i < 20; i++ {
		assert.Equal(serial, set.Analyze(c))
	}

	kinds := []engine.SignalKind{}
	for _, s := range serial {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal([]engine.SignalKind{
		engine.SignalSpam,
		engine.SignalProfanity,
		engine.SignalHarassment,
		engine.SignalLink,
		engine.SignalMention,
		engine.SignalExcessiveCaps,
		engine.SignalShortText,
	}, kinds)
}

func TestConfidence(t *testing.T) {
	assert := assert.New(t)

	caps := CapsAnalyzer{Threshold: 0.7}
	sig := caps.Analyze(NewText("ABCd"))
	assert.True(sig.Triggered)
	assert.InDelta(0.75, sig.Confidence, 0.0001)

	sig = caps.Analyze(NewText("ABcd"))
	assert.False(sig.Triggered)
	assert.InDelta(0.5, sig.Confidence, 0.0001)

	// exactly at threshold does not trigger
	sig = CapsAnalyzer{Threshold: 0.5}.Analyze(NewText("ABcd"))
	assert.False(sig.Triggered)

	sig = caps.Analyze(NewText("!!! 123"))
	assert.False(sig.Triggered)
	assert.Equal(0.0, sig.Confidence)

	short := ShortTextAnalyzer{MinWords: 4}
	sig = short.Analyze(NewText("just one"))
	assert.True(sig.Triggered)
	assert.InDelta(0.5, sig.Confidence, 0.0001)
	assert.False(short.Analyze(NewText("one two three four")).Triggered)
	assert.False(ShortTextAnalyzer{MinWords: 0}.Analyze(NewText("")).Triggered)

	spam := NewSpamAnalyzer([]string{"FREE MONEY"})
	sig = spam.Analyze(NewText("Get Free Money today"))
	assert.True(sig.Triggered)
	assert.Equal(1.0, sig.Confidence)
	assert.Equal("free money", sig.Detail)

	sig = LinkAnalyzer{}.Analyze(NewText("see HTTPS://www.Example.com/deal?utm_source=feed&id=7 now"))
	assert.True(sig.Triggered)
	assert.Equal("https://example.com/deal?id=7", sig.Detail)
}

func TestOracleAnalyzer(t *testing.T) {
	assert := assert.New(t)

	oracle := OracleAnalyzer{
		SignalKind: engine.SignalHarassment,
		Threshold:  0.8,
		Score: func(text string) float64 {
			if text == "mean" {
				return 1.7
			}
			return 0.2
		},
	}
	sig := oracle.Analyze(NewText("mean"))
	assert.True(sig.Triggered)
	assert.Equal(1.0, sig.Confidence)
	assert.Equal(engine.SignalHarassment, oracle.Kind())

	sig = oracle.Analyze(NewText("<i>nice</i>"))
	assert.False(sig.Triggered)
	assert.Equal(0.2, sig.Confidence)

	set := testSet()
	set.Add(oracle)
	assert.Equal(8, len(set.Analyze(engine.Comment{Text: "mean"})))
}

func TestCompilePatterns(t *testing.T) {
	assert := assert.New(t)

	_, err := CompilePatterns([]string{`ok`, `(broken`})
	assert.Error(err)

	pats, err := CompilePatterns([]string{`\bjerk\b`})
	assert.NoError(err)
	assert.True(pats[0].Regexp.MatchString("what a JERK"))
	assert.Panics(func() { MustCompilePatterns([]string{`[`}) })
}
