package engine

import (
	"fmt"
	"time"
)

// Social platform a comment was fetched from.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformReddit    Platform = "reddit"
	PlatformInstagram Platform = "instagram"
	PlatformMedium    Platform = "medium"
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
)

var AllPlatforms = []Platform{
	PlatformTwitter,
	PlatformReddit,
	PlatformInstagram,
	PlatformMedium,
	PlatformYouTube,
	PlatformTikTok,
}

func ParsePlatform(raw string) (Platform, error) {
	for _, p := range AllPlatforms {
		if string(p) == raw {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, raw)
}

// A single comment, as returned by a platform comment source. Treated as an immutable value.
type Comment struct {
	ID           string    `json:"id"`
	PostID       string    `json:"post_id"`
	AuthorID     string    `json:"author_id"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	Platform     Platform  `json:"platform"`
	LikeCount    int       `json:"like_count"`
	ReplyCount   int       `json:"reply_count"`
	IsOwnComment bool      `json:"is_own_comment"`
}

type SignalKind string

const (
	SignalSpam          SignalKind = "spam"
	SignalProfanity     SignalKind = "profanity"
	SignalHarassment    SignalKind = "harassment"
	SignalLink          SignalKind = "link"
	SignalMention       SignalKind = "mention"
	SignalExcessiveCaps SignalKind = "excessive_caps"
	SignalShortText     SignalKind = "short_text"
)

// Output of a single analyzer for a single comment. Never persisted.
type Signal struct {
	Kind       SignalKind
	Triggered  bool
	Confidence float64
	// optional free-form detail, eg the matched phrase
	Detail string
}

type Action string

const (
	ActionApprove Action = "approve"
	ActionFlag    Action = "flag"
	ActionHide    Action = "hide"
	ActionDelete  Action = "delete"
)

// Whether the action results in a platform-side call.
func (a Action) Destructive() bool {
	return a == ActionHide || a == ActionDelete
}

// Auxiliary flags which do not contribute to severity, but are visible to the rule evaluator.
type AuxFlags struct {
	HasLink    bool
	HasMention bool
	ShortText  bool
}

// Exactly one of these is produced per comment per pass.
type Decision struct {
	CommentID        string    `json:"comment_id"`
	PostID           string    `json:"post_id"`
	Platform         Platform  `json:"platform"`
	Action           Action    `json:"action"`
	SeverityObserved Severity  `json:"severity"`
	RuleTriggered    string    `json:"rule_triggered"`
	Reasoning        string    `json:"reasoning"`
	Timestamp        time.Time `json:"timestamp"`
}

type ErrorKind string

const (
	ErrorTransient     ErrorKind = "transient"
	ErrorRateLimited   ErrorKind = "rate_limited"
	ErrorForbidden     ErrorKind = "forbidden"
	ErrorNotFound      ErrorKind = "not_found"
	ErrorMalformedID   ErrorKind = "malformed_id"
	ErrorQuotaExceeded ErrorKind = "quota_exceeded"
	ErrorCancelled     ErrorKind = "cancelled"
	ErrorInternal      ErrorKind = "internal"
)

const AnnotationManualReview = "manual review required"

// Terminal result of executing a decision.
type Outcome struct {
	Decision     Decision  `json:"decision"`
	Success      bool      `json:"success"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	// number of platform calls made, at least 1 for any executed decision (local-only actions count as one)
	Attempts    int      `json:"attempts"`
	Annotations []string `json:"annotations,omitempty"`
	// true when the result came from the idempotency cache, without a platform call
	Cached bool `json:"cached,omitempty"`
}

func (o Outcome) HasAnnotation(a string) bool {
	for _, v := range o.Annotations {
		if v == a {
			return true
		}
	}
	return false
}

// Whether the decision was dropped before execution because the pass was cancelled.
func (o Outcome) Skipped() bool {
	return o.ErrorKind == ErrorCancelled && o.ErrorMessage == SkippedCancelled
}
