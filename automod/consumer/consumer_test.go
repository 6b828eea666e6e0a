package consumer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/moderation-ai/modai/automod/engine"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func testWebhook(t *testing.T, config WebhookConfig) *WebhookServer {
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	srv, err := NewWebhookServer(config)
	if err != nil {
		t.Fatal(err)
	}
	return srv
}

func doRequest(srv *WebhookServer, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	var m = &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

func TestParseTrackEvent(t *testing.T) {
	assert := assert.New(t)

	evt, err := ParseTrackEvent([]byte(`{"kind":"track","post":{"platform":"reddit","post_id":"abc","title":"hello"}}`))
	assert.NoError(err)
	assert.Equal(engine.TrackEventTrack, evt.Kind)
	assert.Equal(engine.PlatformReddit, evt.Post.Platform)
	assert.Equal("abc", evt.Post.PostID)

	_, err = ParseTrackEvent([]byte(`{"kind":"track","post":{"platform":"myspace","post_id":"abc"}}`))
	assert.Error(err)
	_, err = ParseTrackEvent([]byte(`{"kind":"follow","post":{"platform":"reddit","post_id":"abc"}}`))
	assert.Error(err)
	_, err = ParseTrackEvent([]byte(`{"kind":"untrack","post":{"platform":"reddit"}}`))
	assert.Error(err)
	_, err = ParseTrackEvent([]byte(`not json`))
	assert.Error(err)
}

func TestWebhookTrack(t *testing.T) {
	assert := assert.New(t)

	events := make(chan engine.TrackEvent, 4)
	srv := testWebhook(t, WebhookConfig{Events: events})
	// counters are process-global, so compare deltas
	tracked := counterValue(t, trackEventsReceived.WithLabelValues("webhook", "track"))
	invalid := counterValue(t, trackEventsInvalid.WithLabelValues("webhook"))

	rec := doRequest(srv, http.MethodPost, "/track", `{"platform":"youtube","post_id":"vid1"}`)
	assert.Equal(http.StatusAccepted, rec.Code)
	rec = doRequest(srv, http.MethodPost, "/untrack", `{"platform":"youtube","post_id":"vid1"}`)
	assert.Equal(http.StatusAccepted, rec.Code)

	evt := <-events
	assert.Equal(engine.TrackEventTrack, evt.Kind)
	assert.Equal(engine.TrackedPost{Platform: engine.PlatformYouTube, PostID: "vid1"}, evt.Post)
	evt = <-events
	assert.Equal(engine.TrackEventUntrack, evt.Kind)

	rec = doRequest(srv, http.MethodPost, "/track", `{"platform":"myspace","post_id":"vid1"}`)
	assert.Equal(http.StatusBadRequest, rec.Code)
	rec = doRequest(srv, http.MethodPost, "/track", `{"platform":`)
	assert.Equal(http.StatusBadRequest, rec.Code)

	var body map[string]any
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(body, "error")
	assert.Equal(0, len(events))

	assert.Equal(tracked+1, counterValue(t, trackEventsReceived.WithLabelValues("webhook", "track")))
	assert.Equal(invalid+2, counterValue(t, trackEventsInvalid.WithLabelValues("webhook")))
}

func TestWebhookThrottle(t *testing.T) {
	assert := assert.New(t)

	events := make(chan engine.TrackEvent, 4)
	srv := testWebhook(t, WebhookConfig{Events: events, RequestsPerMinute: 1})

	rec := doRequest(srv, http.MethodPost, "/track", `{"platform":"reddit","post_id":"p1"}`)
	assert.Equal(http.StatusAccepted, rec.Code)
	rec = doRequest(srv, http.MethodPost, "/track", `{"platform":"reddit","post_id":"p2"}`)
	assert.Equal(http.StatusTooManyRequests, rec.Code)
	assert.Equal(1, len(events))

	// read endpoints are not throttled
	rec = doRequest(srv, http.MethodGet, "/_health", "")
	assert.Equal(http.StatusOK, rec.Code)
}

func TestWebhookBusy(t *testing.T) {
	assert := assert.New(t)

	events := make(chan engine.TrackEvent)
	srv := testWebhook(t, WebhookConfig{Events: events, EnqueueTimeout: 10 * time.Millisecond})

	rec := doRequest(srv, http.MethodPost, "/track", `{"platform":"reddit","post_id":"p1"}`)
	assert.Equal(http.StatusServiceUnavailable, rec.Code)
}

func TestWebhookStatus(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	mock := engine.NewMockPlatform(engine.PlatformReddit)
	mock.AddComments("p1", engine.Comment{ID: "c1", AuthorID: "a1", Text: "hello"})
	eng := engine.EngineTestFixture(engine.AnalyzerFunc(func(c engine.Comment) []engine.Signal { return nil }), mock)
	res := eng.ModeratePost(ctx, engine.TrackedPost{Platform: engine.PlatformReddit, PostID: "p1"})
	assert.Equal(1, res.Comments)

	srv := testWebhook(t, WebhookConfig{Events: make(chan engine.TrackEvent), Engine: eng})

	rec := doRequest(srv, http.MethodGet, "/status", "")
	assert.Equal(http.StatusOK, rec.Code)
	var status statusResponse
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Nil(status.LastPass)
	if assert.NotNil(status.Audit) {
		assert.Equal(1, status.Audit.SuccessCount)
	}

	rec = doRequest(srv, http.MethodGet, "/report", "")
	assert.Equal(http.StatusOK, rec.Code)
	var report map[string]any
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Contains(report, "summary")
	assert.Contains(report, "actions")

	rec = doRequest(srv, http.MethodGet, "/audit/p1", "")
	assert.Equal(http.StatusNotFound, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/metrics", "")
	assert.Equal(http.StatusOK, rec.Code)
}

func TestRedisQueue(t *testing.T) {
	t.Skip("live test, need redis running locally")
	assert := assert.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opt, err := redis.ParseURL("redis://localhost:6379/0")
	if err != nil {
		t.Fatal(err)
	}
	rq := &RedisQueue{RedisClient: redis.NewClient(opt), Key: "modai/test-track-events", PollTimeout: time.Second}

	events := make(chan engine.TrackEvent, 2)
	go func() { _ = rq.Run(ctx, events) }()

	assert.NoError(rq.Push(ctx, engine.TrackEvent{Kind: engine.TrackEventTrack, Post: engine.TrackedPost{Platform: engine.PlatformTwitter, PostID: "t1"}}))
	assert.Error(rq.Push(ctx, engine.TrackEvent{Kind: engine.TrackEventTrack}))

	evt := <-events
	assert.Equal("t1", evt.Post.PostID)
}
