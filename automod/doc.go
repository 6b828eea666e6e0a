// Comment moderation pipeline for social platforms.
//
// This package (`github.com/moderation-ai/modai/automod`) watches the comment threads of tracked posts across platforms (Twitter, Reddit, Instagram, Medium, YouTube, TikTok). Each comment is run through a set of independent analyzers (spam phrases, profanity, harassment patterns, links, mentions, shouting, very short text), the resulting signals are folded into a single severity, and a rule table maps that severity to an action: approve, flag, hide, or delete. Destructive actions are executed against the platform under per-platform rate limits, with retries, idempotency and a daily quota circuit breaker. Every decision and its outcome is appended to an audit log.
//
// Counters, the idempotency cache and local flags live in pluggable stores (in-process or redis). The engine itself is in `automod/engine`; see `cmd/warden` for a daemon built on this package.
package automod
