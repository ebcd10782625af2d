// Package principal implements the thin external-collaborator boundary for
// API key authentication: a callable that resolves a bearer credential to
// a principal. The real admin/auth surface lives outside this core;
// Resolver is the interface the core calls through, and StaticResolver is
// the simplest concrete implementation that lets the core run standalone
// from a bootstrap file.
package principal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
)

// Principal is what a resolved credential carries through the request
// lifecycle, for the LogRecord's api_key_id/api_key_name fields.
type Principal struct {
	ID     string
	Name   string
	Active bool
}

// ErrInvalidCredential maps to its invalid_api_key -> 401.
var ErrInvalidCredential = errors.New("invalid_api_key")

// ErrCredentialDisabled maps to its api_key_disabled -> 401.
var ErrCredentialDisabled = errors.New("api_key_disabled")

// Resolver resolves a bearer credential extracted from the inbound request
// to a Principal.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (*Principal, error)
}

// StaticResolver resolves from a fixed, in-process credential->Principal
// map, populated at startup (e.g. from the same bootstrap file the catalog
// loads from). It is the default standalone Resolver; a real deployment
// swaps in one backed by the admin CRUD surface without the core noticing.
type StaticResolver struct {
	mu     sync.RWMutex
	byCred map[string]Principal
}

// NewStaticResolver builds a resolver from a credential->Principal map.
func NewStaticResolver(byCred map[string]Principal) *StaticResolver {
	cp := make(map[string]Principal, len(byCred))
	for k, v := range byCred {
		cp[k] = v
	}
	return &StaticResolver{byCred: cp}
}

func (s *StaticResolver) Resolve(_ context.Context, credential string) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byCred[credential]
	if !ok {
		return nil, ErrInvalidCredential
	}
	if !p.Active {
		return nil, ErrCredentialDisabled
	}
	out := p
	return &out, nil
}

// Put registers or replaces a credential's Principal, for bootstrap loading.
func (s *StaticResolver) Put(credential string, p Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCred[credential] = p
}

type contextKey string

const principalContextKey contextKey = "principal"

// FromContext returns the Principal attached to the request context by
// Middleware, or nil if none is present.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey).(*Principal)
	return p
}

// extractCredential reads the bearer credential from either header
// convention: OpenAI's Authorization: Bearer <key>, or
// Anthropic's x-api-key: <key>.
func extractCredential(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("x-api-key")
}

// Middleware authenticates every inbound request via resolver, attaching
// the resolved Principal to the request context on success. Failure maps
// straight to its 401 invalid_api_key / api_key_disabled.
func Middleware(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := extractCredential(r)
			if credential == "" {
				http.Error(w, ErrInvalidCredential.Error(), http.StatusUnauthorized)
				return
			}
			p, err := resolver.Resolve(r.Context(), credential)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), principalContextKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
