package helpers

import (
	"net/url"

	"github.com/PuerkitoBio/purell"
	"github.com/rivo/uniseg"
)

var trackingParams = []string{
	"_ga",
	"fbclid",
	"gclid",
	"mc_eid",
	"msclkid",
	"utm_campaign",
	"utm_content",
	"utm_id",
	"utm_medium",
	"utm_source",
	"utm_term",
}

// Normalizes a URL for signal details and matching: lower-cased host, no "www.", no fragment, no tracking params. Unparsable input is returned as-is.
func NormalizeURL(raw string) string {
	clean, err := purell.NormalizeURLString(raw, purell.FlagsUsuallySafeGreedy|purell.FlagRemoveFragment|purell.FlagRemoveDuplicateSlashes|purell.FlagRemoveWWW|purell.FlagSortQuery)
	if err != nil {
		return raw
	}
	u, err := url.Parse(clean)
	if err != nil || u.RawQuery == "" {
		return clean
	}
	params := u.Query()
	for _, p := range trackingParams {
		params.Del(p)
	}
	u.RawQuery = params.Encode()
	return u.String()
}

// Truncates to at most n grapheme clusters, appending an ellipsis if anything was cut. Never splits an emoji or combining sequence.
func TruncateGraphemes(s string, n int) string {
	gr := uniseg.NewGraphemes(s)
	count := 0
	for gr.Next() {
		if count == n {
			start, _ := gr.Positions()
			return s[:start] + "…"
		}
		count++
	}
	return s
}
