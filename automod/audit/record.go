package audit

import (
	"encoding/json"
	"time"
)

// Persisted audit record, in the documented report format. Field names are part of the export contract.
type Record struct {
	CommentID     string    `json:"comment_id"`
	PostID        string    `json:"post_id"`
	Action        string    `json:"action"`
	RuleTriggered string    `json:"rule_triggered"`
	Timestamp     time.Time `json:"timestamp"`
	Success       bool      `json:"success"`
	// nil when the action succeeded
	ErrorMessage *string `json:"error_message"`
}

// Accepts "video_id" as an alias of "post_id", as found in YouTube exports.
func (r *Record) UnmarshalJSON(b []byte) error {
	type plain Record
	var aux struct {
		plain
		VideoID string `json:"video_id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = Record(aux.plain)
	if r.PostID == "" {
		r.PostID = aux.VideoID
	}
	return nil
}

// Error message, or empty string on success.
func (r Record) ErrorText() string {
	if r.ErrorMessage == nil {
		return ""
	}
	return *r.ErrorMessage
}

// Full audit log entry: the documented Record plus pipeline detail. This is what sinks persist.
type Entry struct {
	Record
	ID          string   `json:"id"`
	Platform    string   `json:"platform"`
	Severity    string   `json:"severity"`
	Reasoning   string   `json:"reasoning"`
	Attempts    int      `json:"attempts"`
	ErrorKind   string   `json:"error_kind,omitempty"`
	Annotations []string `json:"annotations,omitempty"`
}

type entryDetail struct {
	ID          string   `json:"id"`
	Platform    string   `json:"platform"`
	Severity    string   `json:"severity"`
	Reasoning   string   `json:"reasoning"`
	Attempts    int      `json:"attempts"`
	ErrorKind   string   `json:"error_kind,omitempty"`
	Annotations []string `json:"annotations,omitempty"`
}

// Record has a custom decoder, which would otherwise be promoted and swallow the detail fields.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return err
	}
	var d entryDetail
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	*e = Entry{
		Record:      rec,
		ID:          d.ID,
		Platform:    d.Platform,
		Severity:    d.Severity,
		Reasoning:   d.Reasoning,
		Attempts:    d.Attempts,
		ErrorKind:   d.ErrorKind,
		Annotations: d.Annotations,
	}
	return nil
}

func StringPtr(s string) *string {
	return &s
}
