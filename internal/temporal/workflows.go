package temporal

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// RetentionWorkflow is the Temporal-backed form of the scheduler hook (C10):
// a daily cron workflow that trims LogRecords older than the configured
// retention window. Manager.New registers it and
// Manager.EnsureCronSchedule starts it with a CronSchedule, so
// Temporal itself drives the daily trigger instead of an in-process ticker.
// Idempotent on failure: the next scheduled run retries the whole window
// rather than resuming partway through.
func RetentionWorkflow(ctx workflow.Context, in RetentionInput) (RetentionOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var acts *Activities
	var out RetentionOutput
	err := workflow.ExecuteActivity(ctx, acts.DeleteOldLogs, in).Get(ctx, &out)
	return out, err
}
