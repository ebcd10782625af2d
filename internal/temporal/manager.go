package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// Config holds Temporal connection settings.
type Config struct {
	HostPort      string
	Namespace     string
	TaskQueue     string
	CronSchedule  string // standard 5-field cron, e.g. "0 3 * * *" for 3am daily
	RetentionDays int
}

// Manager owns the Temporal client and worker lifecycle for the retention
// workflow.
type Manager struct {
	client client.Client
	worker worker.Worker
	cfg    Config
}

// New creates a Temporal client and worker, registering the retention
// workflow and its activity.
func New(cfg Config, acts *Activities) (*Manager, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("temporal client dial: %w", err)
	}

	w := worker.New(c, cfg.TaskQueue, worker.Options{})
	w.RegisterWorkflow(RetentionWorkflow)
	w.RegisterActivity(acts.DeleteOldLogs)

	return &Manager{client: c, worker: w, cfg: cfg}, nil
}

// Start begins the worker polling for tasks.
func (m *Manager) Start() error {
	return m.worker.Start()
}

// EnsureCronSchedule starts (or confirms) the recurring RetentionWorkflow
// execution using Temporal's native cron support, keyed by a fixed workflow
// ID so re-starting the process doesn't spawn duplicate schedules.
func (m *Manager) EnsureCronSchedule() error {
	_, err := m.client.ExecuteWorkflow(context.Background(), client.StartWorkflowOptions{
		ID:           "log-retention-cron",
		TaskQueue:    m.cfg.TaskQueue,
		CronSchedule: m.cfg.CronSchedule,
	}, RetentionWorkflow, RetentionInput{RetentionDays: m.cfg.RetentionDays})
	if err != nil {
		return fmt.Errorf("start retention cron workflow: %w", err)
	}
	return nil
}

// Client returns the Temporal client for starting workflows.
func (m *Manager) Client() client.Client {
	return m.client
}

// Stop gracefully stops the worker and closes the client.
func (m *Manager) Stop() {
	if m.worker != nil {
		m.worker.Stop()
	}
	if m.client != nil {
		m.client.Close()
	}
}
