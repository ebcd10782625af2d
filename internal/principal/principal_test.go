package principal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticResolverResolvesActivePrincipal(t *testing.T) {
	r := NewStaticResolver(map[string]Principal{"sk-test": {ID: "k1", Name: "test-key", Active: true}})
	p, err := r.Resolve(context.Background(), "sk-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "k1" {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestStaticResolverRejectsUnknownCredential(t *testing.T) {
	r := NewStaticResolver(nil)
	if _, err := r.Resolve(context.Background(), "nope"); err != ErrInvalidCredential {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestStaticResolverRejectsDisabledCredential(t *testing.T) {
	r := NewStaticResolver(map[string]Principal{"sk-test": {ID: "k1", Active: false}})
	if _, err := r.Resolve(context.Background(), "sk-test"); err != ErrCredentialDisabled {
		t.Fatalf("expected ErrCredentialDisabled, got %v", err)
	}
}

func TestMiddlewareAttachesPrincipalFromBearer(t *testing.T) {
	r := NewStaticResolver(map[string]Principal{"sk-test": {ID: "k1", Active: true}})
	var got *Principal
	h := Middleware(r)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got = FromContext(req.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer sk-test")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if got == nil || got.ID != "k1" {
		t.Fatalf("expected principal attached to context, got %+v", got)
	}
}

func TestMiddlewareAttachesPrincipalFromAnthropicHeader(t *testing.T) {
	r := NewStaticResolver(map[string]Principal{"sk-ant-test": {ID: "k2", Active: true}})
	var got *Principal
	h := Middleware(r)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got = FromContext(req.Context())
	}))

	req := httptest.NewRequest("POST", "/v1/messages", nil)
	req.Header.Set("x-api-key", "sk-ant-test")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if got == nil || got.ID != "k2" {
		t.Fatalf("expected principal attached to context, got %+v", got)
	}
}

func TestMiddlewareRejectsMissingCredential(t *testing.T) {
	r := NewStaticResolver(nil)
	h := Middleware(r)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest("POST", "/v1/chat/completions", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}
}

func TestMiddlewareRejectsInvalidCredential(t *testing.T) {
	r := NewStaticResolver(nil)
	h := Middleware(r)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest("POST", "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}
}
