package audit

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("audit sink closed")

type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Rank orders levels; unknown levels rank as INFO.
func (l Level) Rank() int {
	switch l {
	case LevelWarning:
		return 1
	case LevelError:
		return 2
	default:
		return 0
	}
}

const (
	StatusSent          = "Email sent"
	StatusFailed        = "Email failed"
	StatusInvalidEmails = "Invalid emails"
	StatusErrorPrefix   = "Error: "
)

// Entry is one audit record. Field names follow the email_logs document
// layout.
type Entry struct {
	TaskName string         `json:"task_name" bson:"task_name"`
	Details  map[string]any `json:"details" bson:"details"`
	Status   string         `json:"status" bson:"status"`
	Level    Level          `json:"level" bson:"level"`
	At       time.Time      `json:"timestamp" bson:"timestamp"`
}

// Sink persists entries. Implementations are safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// Config configures the audit driver.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	ConnectTimeout  time.Duration
}

const (
	DefaultPath            = "./email_audit.jsonl"
	DefaultMongoURI        = "mongodb://localhost:27017/"
	DefaultMongoDatabase   = "email_automation_db"
	DefaultMongoCollection = "email_logs"
)

type nopSink struct{}

func (nopSink) Record(context.Context, Entry) error { return nil }
func (nopSink) Close() error                        { return nil }

// Nop discards every entry.
func Nop() Sink { return nopSink{} }
