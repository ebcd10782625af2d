package circuitbreaker

import "testing"

func TestRegistryTracksProvidersIndependently(t *testing.T) {
	r := NewRegistry(WithThreshold(2))

	r.RecordFailure("a")
	r.RecordFailure("a")
	if r.IsAvailable("a") {
		t.Fatal("provider a should be tripped after reaching the threshold")
	}
	if !r.IsAvailable("b") {
		t.Fatal("provider b should remain available, it never failed")
	}
}

func TestRegistryRecordSuccessResetsFailures(t *testing.T) {
	r := NewRegistry(WithThreshold(2))
	r.RecordFailure("a")
	r.RecordSuccess("a")
	r.RecordFailure("a")
	if !r.IsAvailable("a") {
		t.Fatal("a single failure after a success reset should not trip the breaker")
	}
}
