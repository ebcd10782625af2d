// Package logsink implements the Log Sink (C9): a LogRecord type, the
// request/response sanitizer, and the append-only persistence interface the
// orchestrator writes through after every routed request.
package logsink

import (
	"context"
	"time"
)

// LogRecord is the persisted form of one routed request. Pointer fields
// are optional and may be nil when a value never applied
// (e.g. no candidate was ever selected, or the upstream call never
// completed far enough to produce a body).
type LogRecord struct {
	TraceID         string
	Timestamp       time.Time
	APIKeyID        string
	APIKeyName      string
	RequestedModel  string
	TargetModel     string
	ProviderID      string
	ProviderName    string
	RetryCount      int
	TTFBMillis      *int64
	TotalMillis     *int64
	InputTokens     int
	OutputTokens    int
	RequestHeaders  map[string]string // sanitized before being set
	RequestBody     string
	ResponseStatus  int
	ResponseBody    string
	Error           string
	Stream          bool
}

// Sink is the LogSink abstraction: an append-only writer plus the retention
// primitive the scheduler hook (C10) drives. Concrete backing
// implementations (SQLite, or the in-memory MemSink) are chosen at startup;
// callers hold only this interface.
type Sink interface {
	Append(ctx context.Context, rec LogRecord) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// Sanitize returns a copy of rec with RequestHeaders masked via
// SanitizeHeaders. It never mutates rec in place so callers may continue to
// use the unsanitized headers (e.g. for upstream forwarding) after logging.
func Sanitize(rec LogRecord) LogRecord {
	rec.RequestHeaders = SanitizeHeaders(rec.RequestHeaders)
	return rec
}
