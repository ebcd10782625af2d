package strategy

import (
	"sync"

	"github.com/jordanhubbard/protogate/internal/catalog"
)

// Strategy is the Selection Strategy abstraction (C3) from the design
// notes: select/next over a keyed-by-model candidate pool, with state
// preserved across requests for the same requested_model and protected for
// concurrent updates.
//
// Next is called by the Retry/Failover Engine (C6) during ADVANCE; callers
// pass the candidates still eligible to try (the full set minus anything
// already attempted this request) and the candidate just tried, so a
// priority-bucketed strategy can tell whether it is still inside the
// current bucket or must fall through to the next one.
type Strategy interface {
	Select(model string, candidates []catalog.Candidate) *catalog.Candidate
	Next(model string, remaining []catalog.Candidate, current *catalog.Candidate) *catalog.Candidate
}

// RoundRobin implements its smooth weighted round-robin strategy,
// with state keyed by requested_model and initialized lazily on first use.
type RoundRobin struct {
	mu     sync.Mutex
	states map[string]*modelState
}

// NewRoundRobin builds an empty RoundRobin strategy. State is created
// lazily per model on first Select/Next.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{states: make(map[string]*modelState)}
}

func (s *RoundRobin) stateFor(model string) *modelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[model]
	if !ok {
		st = newModelState()
		s.states[model] = st
	}
	return st
}

func (s *RoundRobin) Select(model string, candidates []catalog.Candidate) *catalog.Candidate {
	return s.stateFor(model).pick(candidates)
}

func (s *RoundRobin) Next(model string, remaining []catalog.Candidate, _ *catalog.Candidate) *catalog.Candidate {
	return s.stateFor(model).pick(remaining)
}
