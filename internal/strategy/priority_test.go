package strategy

import (
	"testing"

	"github.com/jordanhubbard/protogate/internal/catalog"
)

func priCandidates() []catalog.Candidate {
	return []catalog.Candidate{
		{BindingID: "A", Priority: 0, Weight: 1},
		{BindingID: "B", Priority: 0, Weight: 1},
		{BindingID: "C", Priority: 1, Weight: 1},
	}
}

func TestPrioritySelectPicksLowestBucket(t *testing.T) {
	p := NewPriority()
	got := p.Select("m", priCandidates())
	if got.Priority != 0 {
		t.Fatalf("expected a priority-0 candidate first, got priority %d", got.Priority)
	}
}

func TestPriorityNextStaysInBucketUntilExhausted(t *testing.T) {
	p := NewPriority()
	all := priCandidates()

	first := p.Select("m", all)
	if first.Priority != 0 {
		t.Fatalf("expected first pick from bucket 0, got %d", first.Priority)
	}

	// remaining excludes the candidate just tried, but bucket 0 still has one
	// more untried member (A or B) — Next must stay in bucket 0, not jump to C.
	remaining := removeByID(all, first.BindingID)
	second := p.Next("m", remaining, first)
	if second.Priority != 0 {
		t.Fatalf("expected Next to stay in bucket 0 while it has untried members, got priority %d", second.Priority)
	}

	// bucket 0 now exhausted — Next must advance to bucket 1 (C).
	remaining = removeByID(remaining, second.BindingID)
	third := p.Next("m", remaining, second)
	if third == nil || third.BindingID != "C" {
		t.Fatalf("expected Next to advance to bucket 1's only member C, got %+v", third)
	}
}

func TestPriorityNextReturnsNilWhenNoCandidatesRemain(t *testing.T) {
	p := NewPriority()
	if got := p.Next("m", nil, &catalog.Candidate{Priority: 0}); got != nil {
		t.Fatalf("expected nil when no candidates remain, got %+v", got)
	}
}

func removeByID(cs []catalog.Candidate, id string) []catalog.Candidate {
	var out []catalog.Candidate
	for _, c := range cs {
		if c.BindingID != id {
			out = append(out, c)
		}
	}
	return out
}
