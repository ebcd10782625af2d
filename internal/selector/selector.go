// Package selector implements the Candidate Selector (C2): it produces the
// ordered candidate list for a requested model, applying model-level and
// provider-level rule vetoes plus liveness checks, then sorting survivors
// deterministically.
package selector

import (
	"sort"

	"github.com/jordanhubbard/protogate/internal/catalog"
	"github.com/jordanhubbard/protogate/internal/ruleeval"
)

// Availability reports whether a provider should currently be considered,
// independent of rule evaluation, populated by the health tracker and
// circuit breaker. A nil Availability is treated as "everything available"
// so the selector works standalone in tests.
type Availability interface {
	IsAvailable(providerID string) bool
}

// Select drops on a false model-level RuleSet, drops per-binding on an
// inactive provider, a false provider-level RuleSet, or an unavailable
// provider, then sorts survivors by (priority asc, binding ID asc) for
// deterministic tie-breaking.
func Select(mapping catalog.ModelMapping, bindings []catalog.Binding, providers map[string]catalog.Provider, ctx *ruleeval.Context, avail Availability) []catalog.Candidate {
	if !mapping.MatchingRules.Eval(ctx) {
		return nil
	}

	var out []catalog.Candidate
	for _, b := range bindings {
		if !b.Active {
			continue
		}
		p, ok := providers[b.ProviderID]
		if !ok || !p.Active {
			continue
		}
		if avail != nil && !avail.IsAvailable(p.ID) {
			continue
		}
		if !b.ProviderRules.Eval(ctx) {
			continue
		}
		out = append(out, candidateFrom(b, p))
	}

	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := bindingFor(bindings, out[i].BindingID), bindingFor(bindings, out[j].BindingID)
		if bi.Priority != bj.Priority {
			return bi.Priority < bj.Priority
		}
		return bi.ID < bj.ID
	})
	return out
}

func candidateFrom(b catalog.Binding, p catalog.Provider) catalog.Candidate {
	return catalog.Candidate{
		BindingID:    b.ID,
		ProviderID:   p.ID,
		ProviderName: p.Name,
		BaseURL:      p.BaseURL,
		Protocol:     p.Protocol,
		APIKey:       p.APIKey,
		TargetModel:  b.TargetModel,
		Priority:     b.Priority,
		Weight:       weightOrDefault(b.Weight),
	}
}

func weightOrDefault(w int) int {
	if w < 1 {
		return 1
	}
	return w
}

func bindingFor(bindings []catalog.Binding, id string) catalog.Binding {
	for _, b := range bindings {
		if b.ID == id {
			return b
		}
	}
	return catalog.Binding{}
}
