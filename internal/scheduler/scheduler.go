// Package scheduler implements the Scheduler Hook (C10): a periodic trigger
// that invokes the Log Sink's retention trim. The default trigger is an
// in-process daily ticker; internal/temporal.Manager offers the same
// behavior as a Temporal Cron Workflow for deployments that already run a
// Temporal cluster and want retention survive a process restart mid-window.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jordanhubbard/protogate/internal/logsink"
)

// Ticker runs DeleteOlderThan once a day at hour (0-23, local time), and
// once immediately on Start so a freshly deployed instance doesn't wait a
// full day for its first trim. A failed run is not retried until the next
// scheduled tick, at which point the whole window is retried — idempotent
// since DeleteOlderThan only ever removes rows already past the cutoff.
type Ticker struct {
	sink          logsink.Sink
	retentionDays int
	hour          int
	log           *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewTicker builds a Ticker. hour is clamped to [0,23].
func NewTicker(sink logsink.Sink, retentionDays, hour int, log *slog.Logger) *Ticker {
	if hour < 0 {
		hour = 0
	}
	if hour > 23 {
		hour = 23
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ticker{
		sink:          sink,
		retentionDays: retentionDays,
		hour:          hour,
		log:           log,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start runs the scheduling loop in a goroutine until Stop is called.
func (t *Ticker) Start() {
	go t.loop()
}

// Stop signals the loop to exit and waits for it to finish.
func (t *Ticker) Stop() {
	close(t.stop)
	<-t.done
}

func (t *Ticker) loop() {
	defer close(t.done)

	t.runOnce()

	for {
		wait := time.Until(nextTrigger(time.Now(), t.hour))
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			t.runOnce()
		case <-t.stop:
			timer.Stop()
			return
		}
	}
}

func (t *Ticker) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-time.Duration(t.retentionDays) * 24 * time.Hour)
	n, err := t.sink.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		t.log.Error("log retention trim failed", "error", err)
		return
	}
	t.log.Info("log retention trim complete", "deleted", n, "retention_days", t.retentionDays)
}

// nextTrigger returns the next wall-clock time at hour:00:00, today if that
// moment hasn't passed yet, otherwise tomorrow.
func nextTrigger(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
