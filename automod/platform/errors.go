package platform

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/moderation-ai/modai/automod/engine"
)

// Maps an HTTP response status to a typed platform error. Returns nil for 2xx statuses.
//
// 400 means the comment ID was rejected. Other unexpected 4xx statuses are also treated as permanent (malformed request), never retried.
func ErrorFromStatus(code int, header http.Header) *engine.PlatformError {
	if code >= 200 && code < 300 {
		return nil
	}
	err := &engine.PlatformError{StatusCode: code}
	switch {
	case code == http.StatusTooManyRequests:
		err.Kind = engine.ErrorRateLimited
		if header != nil {
			err.RetryAfter = ParseRetryAfter(header.Get("Retry-After"), time.Now())
		}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		err.Kind = engine.ErrorForbidden
	case code == http.StatusNotFound || code == http.StatusGone:
		err.Kind = engine.ErrorNotFound
	case code == http.StatusRequestTimeout || code >= 500:
		err.Kind = engine.ErrorTransient
	default:
		err.Kind = engine.ErrorMalformedID
	}
	err.Err = fmt.Errorf("HTTP %d %s", code, strings.ToLower(http.StatusText(code)))
	return err
}

// Parses a Retry-After header value, either delay-seconds or an HTTP date. Returns zero if missing or unparsable.
func ParseRetryAfter(val string, now time.Time) time.Duration {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	t, err := http.ParseTime(val)
	if err != nil {
		return 0
	}
	d := t.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Moderation API support per platform, as documented by each platform.
func DefaultCapabilities(p engine.Platform) engine.Capabilities {
	switch p {
	case engine.PlatformMedium:
		// no API for hiding or deleting responses
		return engine.Capabilities{}
	case engine.PlatformInstagram, engine.PlatformYouTube:
		// hide (or hold for review) only
		return engine.Capabilities{SupportsHide: true}
	default:
		return engine.Capabilities{SupportsHide: true, SupportsDelete: true}
	}
}
