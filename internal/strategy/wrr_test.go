package strategy

import (
	"testing"

	"github.com/jordanhubbard/protogate/internal/catalog"
)

func candidates(weights ...int) []catalog.Candidate {
	out := make([]catalog.Candidate, len(weights))
	for i, w := range weights {
		out[i] = catalog.Candidate{BindingID: string(rune('A' + i)), Weight: w, Priority: 1}
	}
	return out
}

func TestRoundRobinWeightedDistribution(t *testing.T) {
	// spec scenario 2: A(w=3), B(w=1) -> A,A,A,B,A,A,A,B over 8 picks.
	rr := NewRoundRobin()
	cs := candidates(3, 1)
	want := []string{"A", "A", "A", "B", "A", "A", "A", "B"}
	for i, w := range want {
		got := rr.Select("m", cs)
		if got.BindingID != w {
			t.Fatalf("pick %d: got %s want %s", i, got.BindingID, w)
		}
	}
}

func TestRoundRobinFairnessOverMultipleRounds(t *testing.T) {
	rr := NewRoundRobin()
	cs := candidates(2, 3, 5)
	counts := map[string]int{}
	rounds := 10
	sum := 2 + 3 + 5
	for i := 0; i < rounds*sum; i++ {
		c := rr.Select("m", cs)
		counts[c.BindingID]++
	}
	want := map[string]int{"A": 2 * rounds, "B": 3 * rounds, "C": 5 * rounds}
	for id, w := range want {
		if counts[id] != w {
			t.Errorf("candidate %s: got %d picks, want %d", id, counts[id], w)
		}
	}
}

func TestRoundRobinCyclicFallbackWhenNoPositiveWeights(t *testing.T) {
	rr := NewRoundRobin()
	cs := candidates(0, -1, 0)
	seen := map[string]int{}
	for i := 0; i < 6; i++ {
		c := rr.Select("m", cs)
		seen[c.BindingID]++
	}
	for _, id := range []string{"A", "B", "C"} {
		if seen[id] != 2 {
			t.Errorf("candidate %s: got %d picks over 6 rounds, want 2", id, seen[id])
		}
	}
}

func TestRoundRobinStatePerModel(t *testing.T) {
	rr := NewRoundRobin()
	a := candidates(1, 1)
	first := rr.Select("model-x", a)
	_ = first
	// a fresh model key must start its own state, not share model-x's counters
	secondModelFirstPick := rr.Select("model-y", a)
	if secondModelFirstPick == nil {
		t.Fatal("expected a pick for a fresh model key")
	}
}

func TestRoundRobinEmptyCandidates(t *testing.T) {
	rr := NewRoundRobin()
	if got := rr.Select("m", nil); got != nil {
		t.Fatalf("expected nil for empty candidate list, got %+v", got)
	}
}
