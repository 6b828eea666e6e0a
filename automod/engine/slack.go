package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/moderation-ai/modai/automod/helpers"
	"github.com/moderation-ai/modai/util"
)

type SlackNotifier struct {
	SlackWebhookURL string
	// defaults to util.RobustHTTPClient
	Client *http.Client
}

func (n *SlackNotifier) SendOutcome(ctx context.Context, c Comment, o Outcome) error {
	if n.SlackWebhookURL == "" || !Notable(o) {
		return nil
	}
	return n.sendSlackMsg(ctx, slackBody(c, o))
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = util.RobustHTTPClient(nil)
		n.Client = client
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || string(respBody) != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

func slackBody(c Comment, o Outcome) string {
	d := o.Decision
	var msg string
	if o.HasAnnotation(AnnotationManualReview) {
		msg = "👀 Moderation: Manual Review Required 👀\n"
	} else if o.Success {
		msg = fmt.Sprintf("⚠️ Moderation Action: %s ⚠️\n", d.Action)
	} else {
		msg = fmt.Sprintf("❌ Moderation Action Failed: %s ❌\n", d.Action)
	}
	msg += fmt.Sprintf("`%s` / post `%s` / comment `%s` / author `%s`\n", d.Platform, d.PostID, d.CommentID, c.AuthorID)
	msg += fmt.Sprintf("Severity: `%s` Rule: `%s`\n", d.SeverityObserved, d.RuleTriggered)
	msg += fmt.Sprintf("Reasoning: %s\n", d.Reasoning)
	if !o.Success {
		msg += fmt.Sprintf("Error `%s` after %d attempt(s): %s\n", o.ErrorKind, o.Attempts, o.ErrorMessage)
	}
	if len(o.Annotations) > 0 {
		msg += fmt.Sprintf("Annotations: `%s`\n", strings.Join(o.Annotations, ", "))
	}
	text := helpers.TruncateGraphemes(c.Text, 280)
	msg += fmt.Sprintf("> %s\n", strings.ReplaceAll(text, "\n", " "))
	return msg
}
