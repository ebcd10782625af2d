package temporal

// RetentionInput is the input for RetentionWorkflow: the retention window in
// days, passed through so a change to the configured value takes effect on
// the workflow's next scheduled run without redeploying.
type RetentionInput struct {
	RetentionDays int `json:"retention_days"`
}

// RetentionOutput is the output of RetentionWorkflow.
type RetentionOutput struct {
	DeletedCount int64 `json:"deleted_count"`
}
