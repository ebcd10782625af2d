// Package retry implements the Retry/Failover Engine (C6): the
// INIT->PICK->SAME_RETRY/ADVANCE->DONE state machine, driving same-provider
// retries on transient failures and provider failover on exhaustion or
// non-transient errors.
package retry

import (
	"context"
	"time"

	"github.com/jordanhubbard/protogate/internal/catalog"
	"github.com/jordanhubbard/protogate/internal/strategy"
	"github.com/jordanhubbard/protogate/internal/upstream"
)

// Options configures the engine's retry budget.
type Options struct {
	MaxAttempts int // per-provider attempt cap before failover; default 3
	DelayMs     int // delay between same-provider retries; default 1000
}

const (
	defaultMaxAttempts = 3
	defaultDelayMs     = 1000
)

func (o Options) normalized() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.DelayMs <= 0 {
		o.DelayMs = defaultDelayMs
	}
	return o
}

// ForwardFunc performs one upstream attempt against a candidate.
type ForwardFunc func(ctx context.Context, candidate catalog.Candidate) *upstream.Response

// OutcomeFunc reports one attempt's outcome for a provider, so the caller
// can feed the health tracker (A7) and circuit breaker (A8) without the
// retry engine importing either.
type OutcomeFunc func(providerID string, success bool)

// Result is the outcome of one retry run, plus the response itself since
// the orchestrator needs both.
type Result struct {
	Response   *upstream.Response
	Candidate  catalog.Candidate
	Success    bool
	RetryCount int // count of failed attempts before the final attempt
	Cancelled  bool
}

// Run drives the state machine over candidates for one request. strat
// supplies Select/Next; forward performs one HTTP attempt; onOutcome
// (optional) observes each attempt's success/failure per provider.
func Run(ctx context.Context, candidates []catalog.Candidate, strat strategy.Strategy, model string, opts Options, forward ForwardFunc, onOutcome OutcomeFunc) *Result {
	opts = opts.normalized()

	if len(candidates) == 0 {
		return &Result{Success: false}
	}

	current := strat.Select(model, candidates)
	if current == nil {
		return &Result{Success: false}
	}

	tried := map[string]bool{}

	attempts := 0
	retryCount := 0
	var lastResp *upstream.Response

	for {
		if ctx.Err() != nil {
			return &Result{Response: lastResp, Candidate: *current, Success: false, RetryCount: retryCount, Cancelled: true}
		}

		resp := forward(ctx, *current)
		lastResp = resp
		attempts++

		if isSuccess(resp) {
			if onOutcome != nil {
				onOutcome(current.ProviderID, true)
			}
			return &Result{Response: resp, Candidate: *current, Success: true, RetryCount: retryCount}
		}

		retryCount++
		if onOutcome != nil {
			onOutcome(current.ProviderID, false)
		}

		if isTransient(resp) && attempts < opts.MaxAttempts {
			if !sleepOrCancel(ctx, time.Duration(opts.DelayMs)*time.Millisecond) {
				return &Result{Response: lastResp, Candidate: *current, Success: false, RetryCount: retryCount, Cancelled: true}
			}
			continue // SAME_RETRY
		}

		// ADVANCE: this candidate is exhausted or the failure was non-transient.
		tried[current.BindingID] = true
		next := strat.Next(model, untried(candidates, tried), current)
		if next == nil {
			return &Result{Response: lastResp, Candidate: *current, Success: false, RetryCount: retryCount}
		}
		current = next
		attempts = 0
	}
}

func untried(all []catalog.Candidate, tried map[string]bool) []catalog.Candidate {
	out := make([]catalog.Candidate, 0, len(all))
	for _, c := range all {
		if !tried[c.BindingID] {
			out = append(out, c)
		}
	}
	return out
}

// isTransient reports a retryable failure: status==0 (network/timeout) or 5xx.
func isTransient(resp *upstream.Response) bool {
	if resp == nil {
		return true
	}
	return resp.Err != nil || resp.Status == 0 || resp.Status >= 500
}

func isSuccess(resp *upstream.Response) bool {
	if resp == nil {
		return false
	}
	return resp.Err == nil && resp.Status >= 200 && resp.Status < 400
}

// sleepOrCancel waits for d, returning false if ctx is cancelled first so
// the caller aborts at the next boundary without a further upstream call.
func sleepOrCancel(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
