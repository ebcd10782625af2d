package logsink

import (
	"context"
	"sync"
	"time"
)

// MemSink is an in-process Sink backed by a slice, used in tests and by
// standalone runs where SQLite persistence isn't wired up.
type MemSink struct {
	mu      sync.Mutex
	records []LogRecord
}

func NewMemSink() *MemSink {
	return &MemSink{}
}

func (s *MemSink) Append(_ context.Context, rec LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *MemSink) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []LogRecord
	var removed int64
	for _, r := range s.records {
		if r.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed, nil
}

func (s *MemSink) Close() error { return nil }

// Records returns a copy of everything appended so far, for assertions.
func (s *MemSink) Records() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogRecord, len(s.records))
	copy(out, s.records)
	return out
}
