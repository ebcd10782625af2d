package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew(t *testing.T) {
	r := New()
	if r == nil {
		t.Fatal("expected non-nil Registry")
	}
	if r.reg == nil {
		t.Fatal("expected non-nil prometheus registry")
	}
	if r.RequestsTotal == nil {
		t.Fatal("expected non-nil RequestsTotal counter")
	}
	if r.RequestLatency == nil {
		t.Fatal("expected non-nil RequestLatency histogram")
	}
	if r.TokensTotal == nil {
		t.Fatal("expected non-nil TokensTotal counter")
	}
}

func TestHandlerNonNil(t *testing.T) {
	r := New()
	h := r.Handler()
	if h == nil {
		t.Fatal("expected non-nil http.Handler from Handler()")
	}
}

func TestMetricsCanBeCollected(t *testing.T) {
	r := New()

	r.RequestsTotal.WithLabelValues("gpt-4", "openai", "200").Inc()
	r.TokensTotal.WithLabelValues("gpt-4", "input").Add(42)
	r.RequestLatency.WithLabelValues("gpt-4", "openai").Observe(150.0)
	r.RetryCount.WithLabelValues("gpt-4").Observe(1)
	r.CircuitState.WithLabelValues("openai").Set(0)
	r.ProviderHealth.WithLabelValues("openai").Set(0)

	mfs, err := r.reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error gathering metrics: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected at least one metric family after recording values")
	}

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}

	want := []string{
		"gateway_requests_total",
		"gateway_request_latency_ms",
		"gateway_tokens_total",
		"gateway_retry_count",
		"gateway_circuit_state",
		"gateway_provider_health",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("expected metric %q in gathered metrics", name)
		}
	}
}

func TestMultipleRegistriesAreIndependent(t *testing.T) {
	r1 := New()
	r2 := New()

	r1.RequestsTotal.WithLabelValues("gpt-4", "openai", "200").Inc()

	mfs, err := r2.reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil && m.GetCounter().GetValue() > 0 {
				t.Error("r2 should not have any non-zero counters")
			}
		}
	}
	_ = r1
}

func TestRegisteredMetricDescriptions(t *testing.T) {
	r := New()

	ch := make(chan *prometheus.Desc, 10)
	go func() {
		r.RequestsTotal.Describe(ch)
		r.RequestLatency.Describe(ch)
		r.TokensTotal.Describe(ch)
		close(ch)
	}()

	count := 0
	for range ch {
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 metric descriptors, got %d", count)
	}
}
