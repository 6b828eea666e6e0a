package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Writes entries as newline-delimited JSON.
type JSONLSink struct {
	mu  sync.Mutex
	out io.Writer
	// closed with the sink, if set
	closer io.Closer
}

func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{out: w}
}

// Opens (or creates) a file for appending.
func OpenJSONLFile(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening audit file: %w", err)
	}
	return &JSONLSink{out: f, closer: f}, nil
}

func (s *JSONLSink) Write(ctx context.Context, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.out.Write(b)
	return err
}

func (s *JSONLSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Reads back entries written by a JSONLSink.
func ReadJSONL(r io.Reader) ([]Entry, error) {
	var out []Entry
	dec := json.NewDecoder(r)
	for {
		var e Entry
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("decoding audit entry %d: %w", len(out), err)
		}
		out = append(out, e)
	}
}

// Database row for an audit entry.
type AuditEntry struct {
	ID            string `gorm:"primarykey"`
	CreatedAt     time.Time
	CommentID     string `gorm:"index"`
	PostID        string `gorm:"index"`
	Platform      string `gorm:"index"`
	Action        string
	RuleTriggered string
	Severity      string
	Reasoning     string
	Timestamp     time.Time `gorm:"index"`
	Success       bool
	ErrorMessage  *string
	ErrorKind     string
	Attempts      int
	// comma separated
	Annotations string
}

func auditRow(e Entry) AuditEntry {
	return AuditEntry{
		ID:            e.ID,
		CommentID:     e.CommentID,
		PostID:        e.PostID,
		Platform:      e.Platform,
		Action:        e.Action,
		RuleTriggered: e.RuleTriggered,
		Severity:      e.Severity,
		Reasoning:     e.Reasoning,
		Timestamp:     e.Timestamp,
		Success:       e.Success,
		ErrorMessage:  e.ErrorMessage,
		ErrorKind:     e.ErrorKind,
		Attempts:      e.Attempts,
		Annotations:   strings.Join(e.Annotations, ","),
	}
}

func (row AuditEntry) Entry() Entry {
	var ann []string
	if row.Annotations != "" {
		ann = strings.Split(row.Annotations, ",")
	}
	return Entry{
		Record: Record{
			CommentID:     row.CommentID,
			PostID:        row.PostID,
			Action:        row.Action,
			RuleTriggered: row.RuleTriggered,
			Timestamp:     row.Timestamp,
			Success:       row.Success,
			ErrorMessage:  row.ErrorMessage,
		},
		ID:          row.ID,
		Platform:    row.Platform,
		Severity:    row.Severity,
		Reasoning:   row.Reasoning,
		Attempts:    row.Attempts,
		ErrorKind:   row.ErrorKind,
		Annotations: ann,
	}
}

// Persists entries to an SQL database (sqlite or postgres) through gorm.
type DBSink struct {
	db *gorm.DB
}

// Runs migrations for the audit table.
func NewDBSink(db *gorm.DB) (*DBSink, error) {
	if err := db.AutoMigrate(&AuditEntry{}); err != nil {
		return nil, fmt.Errorf("migrating audit table: %w", err)
	}
	return &DBSink{db: db}, nil
}

func (s *DBSink) Write(ctx context.Context, e Entry) error {
	row := auditRow(e)
	return s.db.WithContext(ctx).Create(&row).Error
}

// Most recent entries for a post, newest first.
func (s *DBSink) ForPost(ctx context.Context, postID string, limit int) ([]Entry, error) {
	var rows []AuditEntry
	if err := s.db.WithContext(ctx).Where("post_id = ?", postID).Order("timestamp desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Entry, len(rows))
	for i, r := range rows {
		out[i] = r.Entry()
	}
	return out, nil
}

func (s *DBSink) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}

// Fans out to several sinks. Every sink is attempted; errors are joined.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
