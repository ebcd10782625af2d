package logsink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink implements Sink using modernc.org/sqlite (pure-Go, no CGO).
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens or creates a SQLite database at dsn and migrates it.
func NewSQLiteSink(ctx context.Context, dsn string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteSink{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS log_records (
		trace_id TEXT PRIMARY KEY,
		ts DATETIME NOT NULL,
		api_key_id TEXT NOT NULL DEFAULT '',
		api_key_name TEXT NOT NULL DEFAULT '',
		requested_model TEXT NOT NULL,
		target_model TEXT NOT NULL DEFAULT '',
		provider_id TEXT NOT NULL DEFAULT '',
		provider_name TEXT NOT NULL DEFAULT '',
		retry_count INTEGER NOT NULL DEFAULT 0,
		ttfb_ms INTEGER,
		total_ms INTEGER,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		request_headers TEXT NOT NULL DEFAULT '{}',
		request_body TEXT NOT NULL DEFAULT '',
		response_status INTEGER NOT NULL DEFAULT 0,
		response_body TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		stream BOOLEAN NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_log_records_ts ON log_records(ts);
	CREATE INDEX IF NOT EXISTS idx_log_records_model ON log_records(requested_model);`)
	if err != nil {
		return fmt.Errorf("migrate log_records: %w", err)
	}
	return nil
}

// Append persists rec. Callers are expected to have already run it through
// Sanitize; Append itself does not sanitize so the sink stays a dumb writer.
func (s *SQLiteSink) Append(ctx context.Context, rec LogRecord) error {
	headers, err := json.Marshal(rec.RequestHeaders)
	if err != nil {
		return fmt.Errorf("marshal request headers: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO log_records
		(trace_id, ts, api_key_id, api_key_name, requested_model, target_model,
		 provider_id, provider_name, retry_count, ttfb_ms, total_ms,
		 input_tokens, output_tokens, request_headers, request_body,
		 response_status, response_body, error, stream)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.Timestamp, rec.APIKeyID, rec.APIKeyName, rec.RequestedModel,
		rec.TargetModel, rec.ProviderID, rec.ProviderName, rec.RetryCount,
		nullableInt64(rec.TTFBMillis), nullableInt64(rec.TotalMillis),
		rec.InputTokens, rec.OutputTokens, string(headers), rec.RequestBody,
		rec.ResponseStatus, rec.ResponseBody, rec.Error, rec.Stream)
	if err != nil {
		return fmt.Errorf("insert log record: %w", err)
	}
	return nil
}

// DeleteOlderThan removes every record with ts before cutoff, for the
// scheduler hook (C10). It reports the number of rows removed.
func (s *SQLiteSink) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM log_records WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old log records: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
