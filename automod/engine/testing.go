package engine

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/moderation-ai/modai/automod/audit"
	"github.com/moderation-ai/modai/automod/cachestore"
	"github.com/moderation-ai/modai/automod/countstore"
	"github.com/moderation-ai/modai/automod/flagstore"
	"github.com/moderation-ai/modai/automod/ratelimit"
)

type MockCall struct {
	Method    string
	CommentID string
}

// In-memory comment source and moderation sink, with scriptable failures. Intended for tests and demos.
type MockPlatform struct {
	Platform Platform
	Caps     Capabilities
	// comments per page; defaults to 50
	PageSize int
	// called before every Hide or Delete, outside the lock
	OnCall func(method, commentID string)

	mu           sync.Mutex
	posts        map[string][]Comment
	failures     map[string][]error
	fetchFailure map[string][]error
	hidden       map[string]bool
	deleted      map[string]bool
	calls        []MockCall
	fetches      int
}

func NewMockPlatform(p Platform) *MockPlatform {
	return &MockPlatform{
		Platform:     p,
		Caps:         Capabilities{SupportsHide: true, SupportsDelete: true},
		posts:        make(map[string][]Comment),
		failures:     make(map[string][]error),
		fetchFailure: make(map[string][]error),
		hidden:       make(map[string]bool),
		deleted:      make(map[string]bool),
	}
}

// Registers a post, with zero or more comments. Comment platform and post ID are filled in.
func (m *MockPlatform) AddComments(postID string, comments ...Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[postID]; !ok {
		m.posts[postID] = []Comment{}
	}
	for _, c := range comments {
		c.Platform = m.Platform
		c.PostID = postID
		m.posts[postID] = append(m.posts[postID], c)
	}
}

// Queues errors returned by successive Hide/Delete calls for a comment.
func (m *MockPlatform) FailNext(commentID string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[commentID] = append(m.failures[commentID], errs...)
}

// Queues errors returned by successive FetchComments calls for a post.
func (m *MockPlatform) FailFetch(postID string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchFailure[postID] = append(m.fetchFailure[postID], errs...)
}

func (m *MockPlatform) FetchComments(ctx context.Context, postID, cursor string) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if q := m.fetchFailure[postID]; len(q) > 0 {
		m.fetchFailure[postID] = q[1:]
		return nil, q[0]
	}
	comments, ok := m.posts[postID]
	if !ok {
		return nil, &PlatformError{Kind: ErrorNotFound, StatusCode: 404}
	}
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, &PlatformError{Kind: ErrorMalformedID, StatusCode: 400}
		}
		offset = n
	}
	size := m.PageSize
	if size <= 0 {
		size = 50
	}
	if offset > len(comments) {
		offset = len(comments)
	}
	end := offset + size
	if end > len(comments) {
		end = len(comments)
	}
	page := &Page{
		Comments: append([]Comment{}, comments[offset:end]...),
		HasMore:  end < len(comments),
	}
	if page.HasMore {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (m *MockPlatform) act(method, commentID string, done map[string]bool) error {
	if m.OnCall != nil {
		m.OnCall(method, commentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, CommentID: commentID})
	if q := m.failures[commentID]; len(q) > 0 {
		m.failures[commentID] = q[1:]
		return q[0]
	}
	done[commentID] = true
	return nil
}

func (m *MockPlatform) Hide(ctx context.Context, commentID string) error {
	return m.act("hide", commentID, m.hidden)
}

func (m *MockPlatform) Delete(ctx context.Context, commentID string) error {
	return m.act("delete", commentID, m.deleted)
}

func (m *MockPlatform) Capabilities() Capabilities {
	return m.Caps
}

func (m *MockPlatform) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall{}, m.calls...)
}

// Number of calls of the given method ("hide" or "delete") for a comment.
func (m *MockPlatform) CallCount(method, commentID string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Method == method && c.CommentID == commentID {
			n++
		}
	}
	return n
}

func (m *MockPlatform) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

func (m *MockPlatform) IsHidden(commentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hidden[commentID]
}

func (m *MockPlatform) IsDeleted(commentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleted[commentID]
}

// Returns an engine wired to in-memory stores and the mock platform, with retries that don't sleep.
func EngineTestFixture(az Analyzer, mocks ...*MockPlatform) *Engine {
	sources := make(map[Platform]CommentSource)
	sinks := make(map[Platform]ModerationSink)
	for _, m := range mocks {
		sources[m.Platform] = m
		sinks[m.Platform] = m
	}
	limiter := ratelimit.NewLimiter(ratelimit.Options{
		Default: ratelimit.Limit{Requests: 1000, Window: time.Minute},
	})
	counters := countstore.NewMemCountStore()
	noSleep := func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	exec := &Executor{
		Logger:   slog.Default(),
		Sinks:    sinks,
		Limiter:  limiter,
		Retry:    RetryPolicy{MaxAttempts: 3},
		Cache:    cachestore.NewMemCacheStore(1000, time.Hour),
		Counters: counters,
		Flags:    flagstore.NewMemFlagStore(),
		sleep:    noSleep,
	}
	return &Engine{
		Logger:     slog.Default(),
		Analyzer:   az,
		Policy:     DefaultPolicy,
		Sources:    sources,
		Limiter:    limiter,
		Executor:   exec,
		Audit:      audit.NewLog(slog.Default(), nil),
		Counters:   counters,
		FetchRetry: RetryPolicy{MaxAttempts: 2},
		Workers:    4,
		sleep:      noSleep,
	}
}

// JSON capture of posts and their comments, for a single platform.
type CommentCapture struct {
	Platform Platform             `json:"platform"`
	Posts    map[string][]Comment `json:"posts"`
	// optional; defaults to hide+delete
	Capabilities *Capabilities `json:"capabilities,omitempty"`
}

func ParseCapture(raw []byte) (CommentCapture, error) {
	var capture CommentCapture
	if err := json.Unmarshal(raw, &capture); err != nil {
		return capture, err
	}
	if _, err := ParsePlatform(string(capture.Platform)); err != nil {
		return capture, err
	}
	return capture, nil
}

func MustLoadCapture(capPath string) CommentCapture {
	f, err := os.Open(capPath)
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		panic(err)
	}

	capture, err := ParseCapture(raw)
	if err != nil {
		panic(err)
	}
	return capture
}

// Builds a mock platform pre-loaded with the capture's posts. Also returns the tracked post list, in a stable order.
func (cc CommentCapture) MockPlatform() (*MockPlatform, []TrackedPost) {
	m := NewMockPlatform(cc.Platform)
	if cc.Capabilities != nil {
		m.Caps = *cc.Capabilities
	}
	var posts []TrackedPost
	for postID, comments := range cc.Posts {
		m.AddComments(postID, comments...)
		posts = append(posts, TrackedPost{Platform: cc.Platform, PostID: postID})
	}
	sortPosts(posts)
	return m, posts
}
