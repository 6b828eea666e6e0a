package engine

import (
	"context"
	"fmt"
	"time"
)

// One page of comments from a comment source.
type Page struct {
	Comments   []Comment
	NextCursor string
	HasMore    bool
}

type CommentSource interface {
	// Fetches one page of comments for a post. An empty cursor requests the first page.
	FetchComments(ctx context.Context, postID, cursor string) (*Page, error)
}

type Capabilities struct {
	// platform has a native API for hiding a comment
	SupportsHide bool
	// platform allows deletion (of our own comments) via API
	SupportsDelete bool
}

// Platform-side moderation calls. Implementations should return *PlatformError to describe failures.
type ModerationSink interface {
	Hide(ctx context.Context, commentID string) error
	Delete(ctx context.Context, commentID string) error
	Capabilities() Capabilities
}

// Typed failure from a platform call.
type PlatformError struct {
	Kind       ErrorKind
	StatusCode int
	// only meaningful for ErrorRateLimited
	RetryAfter time.Duration
	Err        error
}

func (e *PlatformError) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// Whether another attempt could succeed.
func (e *PlatformError) Retryable() bool {
	return e.Kind == ErrorTransient || e.Kind == ErrorRateLimited
}
