package automod

import (
	"context"
	"testing"

	"github.com/moderation-ai/modai/automod/engine"

	"github.com/stretchr/testify/assert"
)

func TestEngineAliases(t *testing.T) {
	assert := assert.New(t)

	m := engine.NewMockPlatform(engine.PlatformTwitter)
	m.AddComments("t1", Comment{ID: "c1", AuthorID: "a1", Text: "anything"})
	var eng *Engine = engine.EngineTestFixture(engine.AnalyzerFunc(func(c Comment) []Signal {
		return []Signal{{Kind: engine.SignalHarassment, Triggered: true, Confidence: 1}}
	}), m)
	eng.Policy = HideOnlyPolicy

	var sum PassSummary = eng.RunPass(context.Background(), []TrackedPost{{Platform: engine.PlatformTwitter, PostID: "t1"}})
	assert.Equal(1, sum.Hidden)
	assert.Equal([]engine.MockCall{{Method: string(ActionHide), CommentID: "c1"}}, m.Calls())
}
