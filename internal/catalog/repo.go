package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Repo is the ProviderRepo abstraction: an interface-driven family with a
// concrete backing implementation chosen at startup, so the orchestrator
// only ever holds the interface.
type Repo interface {
	Mapping(requestedModel string) (ModelMapping, bool)
	Bindings(requestedModel string) []Binding
	Provider(id string) (Provider, bool)
}

// MemRepo is an in-process, mutex-guarded ProviderRepo backed by maps
// populated at startup from a bootstrap file or the admin surface. It is
// the default concrete Repo; a differently-backed Repo (e.g. one that reads
// through to a SQL table on every call) can be substituted without the
// orchestrator noticing, per the interface-driven-polymorphism design note.
type MemRepo struct {
	mu        sync.RWMutex
	mappings  map[string]ModelMapping
	bindings  map[string][]Binding // keyed by RequestedModel
	providers map[string]Provider
}

func NewMemRepo() *MemRepo {
	return &MemRepo{
		mappings:  make(map[string]ModelMapping),
		bindings:  make(map[string][]Binding),
		providers: make(map[string]Provider),
	}
}

func (r *MemRepo) Mapping(requestedModel string) (ModelMapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mappings[requestedModel]
	return m, ok
}

func (r *MemRepo) Bindings(requestedModel string) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src := r.bindings[requestedModel]
	out := make([]Binding, len(src))
	copy(out, src)
	return out
}

func (r *MemRepo) Provider(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// Providers returns every registered provider, for the composition root's
// one-time vault-credential resolution pass at startup.
func (r *MemRepo) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	return out
}

// PutProvider upserts a provider definition. Used by the admin surface and
// by bootstrap loading; the core itself never calls this mid-request.
func (r *MemRepo) PutProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID] = p
}

// PutMapping upserts a model mapping.
func (r *MemRepo) PutMapping(m ModelMapping) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappings[m.RequestedModel] = m
}

// PutBinding appends or replaces (by ID) a binding for its RequestedModel.
func (r *MemRepo) PutBinding(b Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.bindings[b.RequestedModel]
	for i, existing := range list {
		if existing.ID == b.ID {
			list[i] = b
			r.bindings[b.RequestedModel] = list
			return
		}
	}
	r.bindings[b.RequestedModel] = append(list, b)
}

// bootstrapFile is the on-disk shape of a seed file naming providers,
// mappings, and bindings, so a standalone gateway binary can run without
// an admin CRUD surface.
type bootstrapFile struct {
	Providers []Provider `json:"providers"`
	Mappings  []ModelMapping `json:"mappings"`
	Bindings  []Binding  `json:"bindings"`
}

// LoadBootstrapFile reads a JSON seed file into a MemRepo. The file must
// not be readable by group/other (mode <= 0600) since it may carry
// plaintext provider API keys when the vault is disabled.
func LoadBootstrapFile(path string) (*MemRepo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat bootstrap file: %w", err)
	}
	if info.Mode().Perm()&0077 != 0 {
		return nil, fmt.Errorf("bootstrap file %s must not be readable by group/other (mode %o)", path, info.Mode().Perm())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bootstrap file: %w", err)
	}
	var bf bootstrapFile
	if err := json.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parse bootstrap file: %w", err)
	}
	repo := NewMemRepo()
	for _, p := range bf.Providers {
		repo.PutProvider(p)
	}
	for _, m := range bf.Mappings {
		repo.PutMapping(m)
	}
	for _, b := range bf.Bindings {
		repo.PutBinding(b)
	}
	return repo, nil
}
