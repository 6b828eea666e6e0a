package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlackBody(t *testing.T) {
	assert := assert.New(t)

	c := Comment{ID: "c1", AuthorID: "a1", Text: strings.Repeat("x", 300) + "\nmore"}
	o := Outcome{
		Decision: Decision{
			CommentID:        "c1",
			PostID:           "p1",
			Platform:         PlatformReddit,
			Action:           ActionHide,
			SeverityObserved: SeverityHigh,
			RuleTriggered:    RuleHighSeverity,
			Reasoning:        "spam",
		},
		Success:  true,
		Attempts: 1,
	}
	body := slackBody(c, o)
	assert.Contains(body, "Moderation Action: hide")
	assert.Contains(body, "Rule: `high-severity`")
	assert.Contains(body, "> "+strings.Repeat("x", 280)+"…")
	assert.NotContains(body, "more")

	o.Success = false
	o.ErrorKind = ErrorForbidden
	o.ErrorMessage = "HTTP 403 Forbidden"
	body = slackBody(c, o)
	assert.Contains(body, "Moderation Action Failed")
	assert.Contains(body, "Error `forbidden` after 1 attempt(s)")
}

func TestSlackNotifier(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var got []SlackWebhookBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b SlackWebhookBody
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		got = append(got, b)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := &SlackNotifier{SlackWebhookURL: srv.URL, Client: srv.Client()}
	c := Comment{ID: "c1", Text: "buy now"}

	// approvals are not notable
	approve := Outcome{Decision: Decision{CommentID: "c1", Action: ActionApprove}, Success: true, Attempts: 1}
	assert.NoError(n.SendOutcome(ctx, c, approve))
	assert.Empty(got)

	del := Outcome{Decision: Decision{CommentID: "c1", Action: ActionDelete}, Success: true, Attempts: 1}
	assert.NoError(n.SendOutcome(ctx, c, del))
	assert.Len(got, 1)
	assert.Contains(got[0].Text, "delete")

	// replays from the idempotency cache are not notable either
	del.Cached = true
	assert.NoError(n.SendOutcome(ctx, c, del))
	assert.Len(got, 1)

	failing := httptest.NewServer(http.NotFoundHandler())
	defer failing.Close()
	bad := &SlackNotifier{SlackWebhookURL: failing.URL, Client: failing.Client()}
	del.Cached = false
	assert.Error(bad.SendOutcome(ctx, c, del))
}
