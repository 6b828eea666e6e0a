package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetFirstMatch(t *testing.T) {
	assert := assert.New(t)

	set := NewSet([]string{"Damn", "crap", ""})
	assert.Equal(2, len(set))
	assert.True(set.Contains("damn"))
	assert.False(set.Contains("Damn"))

	tok, ok := set.FirstMatch(TokenizeWords("Oh CRAP, damn it"))
	assert.True(ok)
	assert.Equal("crap", tok)

	_, ok = set.FirstMatch(TokenizeWords("scrapbook"))
	assert.False(ok)
}
