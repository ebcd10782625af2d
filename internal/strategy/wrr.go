package strategy

import (
	"math"
	"sync"

	"github.com/jordanhubbard/protogate/internal/catalog"
)

// modelState is the per-requested_model mutable counters backing smooth
// weighted round-robin and the unweighted cyclic fallback. It is guarded by
// its own lock; the critical section covers only the pick-and-update
// sequence.
type modelState struct {
	mu      sync.Mutex
	cw      map[string]int // bindingID -> current weight
	cyclic  int            // fallback cursor when all weights are <= 0
}

func newModelState() *modelState {
	return &modelState{cw: make(map[string]int)}
}

// pick applies one round of smooth weighted round-robin over candidates:
// cw_i += ew_i for every candidate; the candidate with the largest cw wins;
// the winner's cw is reduced by the sum of effective weights. If every
// candidate's weight is <= 0, it falls back to unweighted cyclic advance.
func (s *modelState) pick(candidates []catalog.Candidate) *catalog.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(candidates) == 0 {
		return nil
	}

	sum := 0
	anyPositive := false
	for _, c := range candidates {
		if c.Weight > 0 {
			anyPositive = true
			sum += c.Weight
		}
	}
	if !anyPositive {
		return s.pickCyclicLocked(candidates)
	}

	var best *catalog.Candidate
	bestCW := math.MinInt
	for i := range candidates {
		c := &candidates[i]
		ew := c.Weight
		if ew < 0 {
			ew = 0
		}
		cw := s.cw[c.BindingID] + ew
		s.cw[c.BindingID] = cw
		if cw > bestCW {
			bestCW = cw
			best = c
		}
	}
	s.cw[best.BindingID] -= sum
	cp := *best
	return &cp
}

func (s *modelState) pickCyclicLocked(candidates []catalog.Candidate) *catalog.Candidate {
	idx := s.cyclic % len(candidates)
	s.cyclic++
	cp := candidates[idx]
	return &cp
}
