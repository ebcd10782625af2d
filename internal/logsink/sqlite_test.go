package logsink

import (
	"context"
	"testing"
	"time"
)

func TestSQLiteSinkAppendAndDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	sink, err := NewSQLiteSink(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	defer sink.Close()

	old := LogRecord{
		TraceID:        "old-1",
		Timestamp:      time.Now().Add(-48 * time.Hour),
		RequestedModel: "gpt-4",
		ResponseStatus: 200,
	}
	recent := LogRecord{
		TraceID:        "recent-1",
		Timestamp:      time.Now(),
		RequestedModel: "gpt-4",
		ResponseStatus: 200,
	}
	if err := sink.Append(ctx, Sanitize(old)); err != nil {
		t.Fatalf("append old: %v", err)
	}
	if err := sink.Append(ctx, Sanitize(recent)); err != nil {
		t.Fatalf("append recent: %v", err)
	}

	removed, err := sink.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete older than: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 row removed, got %d", removed)
	}
}

func TestMemSinkAppendAndDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	sink := NewMemSink()
	old := LogRecord{TraceID: "a", Timestamp: time.Now().Add(-time.Hour)}
	recent := LogRecord{TraceID: "b", Timestamp: time.Now()}
	_ = sink.Append(ctx, old)
	_ = sink.Append(ctx, recent)

	removed, err := sink.DeleteOlderThan(ctx, time.Now().Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("delete older than: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if len(sink.Records()) != 1 {
		t.Fatalf("expected 1 record remaining, got %d", len(sink.Records()))
	}
}
