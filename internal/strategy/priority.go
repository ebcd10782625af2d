package strategy

import (
	"strconv"
	"sync"

	"github.com/jordanhubbard/protogate/internal/catalog"
)

// Priority implements its priority-weighted strategy: candidates
// are bucketed by priority, smooth weighted round-robin runs within the
// numerically lowest bucket, and the failover engine moving to the next
// bucket only happens once the current bucket is exhausted (see DESIGN.md's
// resolution of the bucket-exhaustion open question).
type Priority struct {
	mu     sync.Mutex
	states map[string]*modelState // keyed by model + "|" + priority bucket
}

func NewPriority() *Priority {
	return &Priority{states: make(map[string]*modelState)}
}

func (s *Priority) stateFor(key string) *modelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key]
	if !ok {
		st = newModelState()
		s.states[key] = st
	}
	return st
}

func (s *Priority) Select(model string, candidates []catalog.Candidate) *catalog.Candidate {
	bucket, minP := lowestBucket(candidates)
	if bucket == nil {
		return nil
	}
	return s.stateFor(bucketKey(model, minP)).pick(bucket)
}

// Next picks within current's priority bucket if any untried candidate
// remains there; otherwise it advances to the next (numerically larger)
// bucket present in remaining, exhausting each bucket before moving on.
func (s *Priority) Next(model string, remaining []catalog.Candidate, current *catalog.Candidate) *catalog.Candidate {
	if current != nil {
		if bucket, ok := bucketAt(remaining, current.Priority); ok {
			return s.stateFor(bucketKey(model, current.Priority)).pick(bucket)
		}
	}
	bucket, minP := lowestBucket(remaining)
	if bucket == nil {
		return nil
	}
	return s.stateFor(bucketKey(model, minP)).pick(bucket)
}

// lowestBucket returns the candidates sharing the numerically lowest
// priority in the slice.
func lowestBucket(candidates []catalog.Candidate) ([]catalog.Candidate, int) {
	if len(candidates) == 0 {
		return nil, 0
	}
	minP := candidates[0].Priority
	for _, c := range candidates[1:] {
		if c.Priority < minP {
			minP = c.Priority
		}
	}
	b, _ := bucketAt(candidates, minP)
	return b, minP
}

func bucketAt(candidates []catalog.Candidate, priority int) ([]catalog.Candidate, bool) {
	var out []catalog.Candidate
	for _, c := range candidates {
		if c.Priority == priority {
			out = append(out, c)
		}
	}
	return out, len(out) > 0
}

func bucketKey(model string, priority int) string {
	return model + "|" + strconv.Itoa(priority)
}
