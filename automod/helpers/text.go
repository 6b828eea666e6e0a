package helpers

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/spaolacci/murmur3"
)

func DedupeStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}

// returns a fast, compact hash of a string
//
// current implementation uses murmur3, default seed, and hex encoding
func HashOfString(s string) string {
	val := murmur3.Sum64([]byte(s))
	return fmt.Sprintf("%016x", val)
}

var (
	htmlTagRegex = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRegex   = regexp.MustCompile(`\s+`)
)

// Removes markup tags, unescapes HTML entities, and collapses whitespace runs to single spaces.
//
// Tags are replaced by a space so that "a<br>b" yields two words.
func StripHTML(raw string) string {
	s := htmlTagRegex.ReplaceAllString(raw, " ")
	s = html.UnescapeString(s)
	s = spaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// requires an explicit scheme, unlike a bare domain match
var schemeURLRegex = regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.\-]*://[\w\-]+(\.[\w\-]+)*(:\d+)?[^\s]*`)

func ExtractTextURLs(raw string) []string {
	return schemeURLRegex.FindAllString(raw, -1)
}

var mentionRegex = regexp.MustCompile(`(^|[^\w@])@([A-Za-z0-9_][A-Za-z0-9_.\-]*)`)

// Returns the handles (without leading '@') mentioned in text.
func ExtractMentions(raw string) []string {
	var out []string
	for _, m := range mentionRegex.FindAllStringSubmatch(raw, -1) {
		out = append(out, strings.TrimRight(m[2], ".-"))
	}
	return DedupeStrings(out)
}
