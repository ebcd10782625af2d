// Package catalog holds the core data model — Provider, Model Mapping,
// Provider Binding, and the runtime Candidate derived from them — plus the
// ProviderRepo abstraction that the orchestrator consults at request time.
// Provider/Model Mapping/Binding lifecycle is owned by the admin surface;
// the core treats a loaded snapshot as immutable within one request.
package catalog

import "github.com/jordanhubbard/protogate/internal/ruleeval"

// Protocol identifies the wire shape a provider speaks.
type Protocol string

const (
	ProtocolOpenAI    Protocol = "openai"
	ProtocolAnthropic Protocol = "anthropic"
)

// Provider is an upstream LLM backend. Identity is by ID; Name is unique
// among active and inactive providers.
type Provider struct {
	ID       string
	Name     string
	BaseURL  string
	Protocol Protocol
	APIKey   string
	Active   bool
}

// Strategy identifies which Selection Strategy (C3) a ModelMapping uses.
type Strategy string

const (
	StrategyRoundRobin Strategy = "round_robin"
	StrategyPriority   Strategy = "priority"
)

// ModelMapping is keyed by the requested_model string clients send.
// Model-level MatchingRules are a veto applied before any provider is
// considered.
type ModelMapping struct {
	RequestedModel string
	Strategy       Strategy
	MatchingRules  *ruleeval.RuleSet
	Active         bool
}

// Binding couples one ModelMapping to one Provider with a rewrite target.
// Multiple bindings per model are expected; Priority breaks ties with lower
// values scheduled first, Weight feeds the weighted selection strategies.
type Binding struct {
	ID             string
	RequestedModel string
	ProviderID     string
	TargetModel    string
	ProviderRules  *ruleeval.RuleSet
	Priority       int
	Weight         int
	Active         bool
}

// Candidate is the runtime derivative of a Binding+Provider pair. It is
// created per request and never persisted.
type Candidate struct {
	BindingID    string
	ProviderID   string
	ProviderName string
	BaseURL      string
	Protocol     Protocol
	APIKey       string
	TargetModel  string
	Priority     int
	Weight       int
}
