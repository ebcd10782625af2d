// Package httpapi mounts the gateway's external HTTP surface (A5):
// the four protocol-compatible chat/completion/embeddings/messages routes,
// /healthz, /metrics, and an optional /v1/events SSE feed.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jordanhubbard/protogate/internal/events"
	"github.com/jordanhubbard/protogate/internal/metrics"
	"github.com/jordanhubbard/protogate/internal/orchestrator"
	"github.com/jordanhubbard/protogate/internal/principal"
)

// maxRequestBodySize bounds the inbound JSON body; streaming upstream
// responses are governed separately by maxStreamBytes.
const maxRequestBodySize = 10 << 20 // 10MiB

// Dependencies bundles everything a handler needs so handlers stay thin
// constructors over shared state.
type Dependencies struct {
	Orchestrator *orchestrator.Orchestrator
	Metrics      *metrics.Registry
	Events       *events.Bus // nil disables /v1/events
	Ready        func() bool // reports whether the gateway has any routable model
}

// MountRoutes wires the external surface onto r. resolver authenticates
// every /v1/* request before it reaches a handler; /healthz and /metrics
// stay unauthenticated so orchestration tooling can probe them.
func MountRoutes(r chi.Router, d Dependencies, resolver principal.Resolver) {
	r.Get("/healthz", HealthzHandler(d))
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(bodySizeLimit(maxRequestBodySize))
		r.Use(principal.Middleware(resolver))

		r.Post("/chat/completions", ChatHandler(d))
		r.Post("/completions", CompletionsHandler(d))
		r.Post("/embeddings", EmbeddingsHandler(d))
		r.Post("/messages", MessagesHandler(d))

		if d.Events != nil {
			r.Get("/events", EventsHandler(d))
		}
	})
}

// bodySizeLimit caps the request body via http.MaxBytesReader, returning
// 413 once exceeded mid-read.
func bodySizeLimit(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// HealthzHandler reports 503 until the gateway has at least one routable
// model, distinguishing liveness from readiness.
func HealthzHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready := d.Ready == nil || d.Ready()
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready"})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
