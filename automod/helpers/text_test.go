package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		s   string
		out string
	}{
		{s: "", out: ""},
		{s: "plain text", out: "plain text"},
		{s: "<p>Hello <b>world</b></p>", out: "Hello world"},
		{s: "line one<br/>line two", out: "line one line two"},
		{s: "fish &amp; chips &lt;3", out: "fish & chips <3"},
		{s: "  lots\n\tof   space ", out: "lots of space"},
		{s: "<a href=\"https://example.com\">link</a>", out: "link"},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, StripHTML(fix.s))
	}
}

func TestExtractURL(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		s   string
		out []string
	}{
		{
			s:   "this is a description with example.com mentioned in the middle",
			out: nil,
		},
		{
			s:   "this is another example with https://en.wikipedia.org/index.html and ftp://archive.org",
			out: []string{"https://en.wikipedia.org/index.html", "ftp://archive.org"},
		},
		{
			s:   "visit HTTP://localhost:8080/x now",
			out: []string{"HTTP://localhost:8080/x"},
		},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, ExtractTextURLs(fix.s))
	}
}

func TestExtractMentions(t *testing.T) {
	assert := assert.New(t)

	assert.Empty(ExtractMentions("no mentions here, email me at a@b.com"))
	assert.Equal([]string{"alice", "bob.smith"}, ExtractMentions("@alice and @bob.smith. also @alice"))
}

func TestDedupeStrings(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"a", "b"}, DedupeStrings([]string{"a", "b", "a"}))
	assert.Nil(DedupeStrings([]string{}))
}

func TestHashOfString(t *testing.T) {
	assert := assert.New(t)

	// hashing function should be consistent over time
	assert.Equal("4e6f69c0e3d10992", HashOfString("dummy-value"))
}
