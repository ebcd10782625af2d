package temporal

import (
	"context"
	"time"

	"github.com/jordanhubbard/protogate/internal/logsink"
)

// Activities bundles the dependencies the retention workflow's activities
// need. It is registered with the worker in Manager.New.
type Activities struct {
	Sink          logsink.Sink
	RetentionDays int
}

// DeleteOldLogs runs the Log Sink's delete_older_than for the configured
// retention window. It is idempotent: re-running it against an
// already-trimmed window simply deletes zero rows.
func (a *Activities) DeleteOldLogs(ctx context.Context, in RetentionInput) (RetentionOutput, error) {
	days := in.RetentionDays
	if days <= 0 {
		days = a.RetentionDays
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := a.Sink.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return RetentionOutput{}, err
	}
	return RetentionOutput{DeletedCount: n}, nil
}
