package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/moderation-ai/modai/automod/engine"

	"github.com/araddon/dateparse"
	"github.com/google/go-querystring/query"
	"github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Generic JSON REST adapter, implementing both engine.CommentSource and engine.ModerationSink.
//
// Intended for a platform gateway service which normalizes each platform's API:
//
//	GET    {base}/posts/{id}/comments?cursor=
//	POST   {base}/comments/{id}/hide
//	DELETE {base}/comments/{id}
//
// There are no retries in this client: the executor owns retries and rate limiting.
type RESTClient struct {
	Platform  engine.Platform
	BaseURL   string
	Token     string
	Caps      engine.Capabilities
	UserAgent string
	// requested comments per page; zero leaves it to the gateway
	PageSize int
	Client   *http.Client
}

func NewRESTClient(p engine.Platform, baseURL, token string) *RESTClient {
	client := cleanhttp.DefaultPooledClient()
	client.Transport = otelhttp.NewTransport(client.Transport)
	client.Timeout = 15 * time.Second
	return &RESTClient{
		Platform:  p,
		BaseURL:   strings.TrimSuffix(baseURL, "/"),
		Token:     token,
		Caps:      DefaultCapabilities(p),
		UserAgent: "modai-warden",
		Client:    client,
	}
}

type fetchParams struct {
	Cursor string `url:"cursor,omitempty"`
	Limit  int    `url:"limit,omitempty"`
}

// Gateways pass through each platform's timestamp format, so created_at is parsed loosely.
type restComment struct {
	ID           string `json:"id"`
	PostID       string `json:"post_id"`
	AuthorID     string `json:"author_id"`
	Text         string `json:"text"`
	CreatedAt    string `json:"created_at"`
	LikeCount    int    `json:"like_count"`
	ReplyCount   int    `json:"reply_count"`
	IsOwnComment bool   `json:"is_own_comment"`
}

func (rc restComment) Comment(p engine.Platform, postID string) engine.Comment {
	c := engine.Comment{
		ID:           rc.ID,
		PostID:       rc.PostID,
		AuthorID:     rc.AuthorID,
		Text:         rc.Text,
		Platform:     p,
		LikeCount:    rc.LikeCount,
		ReplyCount:   rc.ReplyCount,
		IsOwnComment: rc.IsOwnComment,
	}
	if c.PostID == "" {
		c.PostID = postID
	}
	if rc.CreatedAt != "" {
		// unparsable timestamps are left zero; zone-less ones are taken as UTC
		if t, err := dateparse.ParseIn(rc.CreatedAt, time.UTC); err == nil {
			c.CreatedAt = t.UTC()
		}
	}
	return c
}

type commentsResponse struct {
	Comments   []restComment `json:"comments"`
	NextCursor string        `json:"next_cursor"`
	HasMore    bool          `json:"has_more"`
}

func (rc *RESTClient) do(ctx context.Context, method, path string, params url.Values, out any) error {
	u := rc.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return &engine.PlatformError{Kind: engine.ErrorInternal, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if rc.UserAgent != "" {
		req.Header.Set("User-Agent", rc.UserAgent)
	}
	if rc.Token != "" {
		req.Header.Set("Authorization", "Bearer "+rc.Token)
	}

	resp, err := rc.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &engine.PlatformError{Kind: engine.ErrorCancelled, Err: err}
		}
		return &engine.PlatformError{Kind: engine.ErrorTransient, Err: err}
	}
	defer resp.Body.Close()

	if perr := ErrorFromStatus(resp.StatusCode, resp.Header); perr != nil {
		// drain, so the connection can be re-used
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return perr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &engine.PlatformError{Kind: engine.ErrorTransient, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func (rc *RESTClient) FetchComments(ctx context.Context, postID, cursor string) (*engine.Page, error) {
	if postID == "" {
		return nil, &engine.PlatformError{Kind: engine.ErrorMalformedID, Err: fmt.Errorf("empty post id")}
	}
	vals, err := query.Values(fetchParams{Cursor: cursor, Limit: rc.PageSize})
	if err != nil {
		return nil, &engine.PlatformError{Kind: engine.ErrorInternal, Err: err}
	}
	var body commentsResponse
	if err := rc.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(postID)+"/comments", vals, &body); err != nil {
		return nil, err
	}
	comments := make([]engine.Comment, 0, len(body.Comments))
	for _, c := range body.Comments {
		comments = append(comments, c.Comment(rc.Platform, postID))
	}
	return &engine.Page{
		Comments:   comments,
		NextCursor: body.NextCursor,
		HasMore:    body.HasMore && body.NextCursor != "",
	}, nil
}

func (rc *RESTClient) Hide(ctx context.Context, commentID string) error {
	if commentID == "" {
		return &engine.PlatformError{Kind: engine.ErrorMalformedID, Err: fmt.Errorf("empty comment id")}
	}
	return rc.do(ctx, http.MethodPost, "/comments/"+url.PathEscape(commentID)+"/hide", nil, nil)
}

func (rc *RESTClient) Delete(ctx context.Context, commentID string) error {
	if commentID == "" {
		return &engine.PlatformError{Kind: engine.ErrorMalformedID, Err: fmt.Errorf("empty comment id")}
	}
	return rc.do(ctx, http.MethodDelete, "/comments/"+url.PathEscape(commentID), nil, nil)
}

func (rc *RESTClient) Capabilities() engine.Capabilities {
	return rc.Caps
}
