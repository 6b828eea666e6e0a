package keyword

import (
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Lower-cases a string and folds unicode combining marks away (so "Gdańsk" becomes "gdansk").
func Fold(s string) string {
	// this needs to be re-defined in every call to prevent a race condition
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	lower := strings.ToLower(s)
	out, _, err := transform.String(normFunc, lower)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		return lower
	}
	return out
}

// Splits free-form text on whitespace, then trims punctuation from the edges of every token and folds it.
//
// Interior punctuation is preserved, so "d*mn" stays a single token. Tokens which are entirely punctuation are dropped.
func TokenizeWords(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if tok == "" {
			continue
		}
		out = append(out, Fold(tok))
	}
	return out
}
