package circuitbreaker

import "sync"

// Registry holds one Breaker per provider, created lazily on first use, so
// the orchestrator and selector can share a single availability view keyed
// by provider ID.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	opts     []Option
}

// NewRegistry builds an empty Registry. Every lazily-created Breaker is
// configured with opts.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{breakers: make(map[string]*Breaker), opts: opts}
}

func (r *Registry) breakerFor(providerID string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[providerID]
	if !ok {
		b = New(r.opts...)
		r.breakers[providerID] = b
	}
	return b
}

// IsAvailable implements the selector.Availability interface: a provider is
// unavailable while its breaker is tripped and still within cooldown.
func (r *Registry) IsAvailable(providerID string) bool {
	return r.breakerFor(providerID).Allow()
}

// RecordSuccess reports a successful upstream call for providerID.
func (r *Registry) RecordSuccess(providerID string) {
	r.breakerFor(providerID).RecordSuccess()
}

// RecordFailure reports a failed upstream call for providerID.
func (r *Registry) RecordFailure(providerID string) {
	r.breakerFor(providerID).RecordFailure()
}
