package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeWords(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		out  []string
	}{
		{text: "", out: []string{}},
		{text: "This is stupid, you idiot", out: []string{"this", "is", "stupid", "you", "idiot"}},
		{text: "what the d*mn!!!", out: []string{"what", "the", "d*mn"}},
		{text: "... !!! ok", out: []string{"ok"}},
		{text: "CAFÉ", out: []string{"cafe"}},
		{text: "@sam (you're a clown) 🤡🤡", out: []string{"sam", "you're", "a", "clown"}},
		{text: "buy\tnow\n\nhttps://spam.example/x", out: []string{"buy", "now", "https://spam.example/x"}},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, TokenizeWords(fix.text))
	}
}

func TestFold(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("gdansk", Fold("Gdańsk"))
	assert.Equal("hello, โลก!", Fold("Hello, โลก!"))
	assert.Equal("", Fold(""))
}
