package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every Prometheus collector the gateway exports, scoped
// under the gateway_ namespace and exposed at /metrics.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestLatency  *prometheus.HistogramVec
	RetryCount      *prometheus.HistogramVec
	TokensTotal     *prometheus.CounterVec
	CircuitState    *prometheus.GaugeVec // 0=closed, 1=open, 2=half-open
	ProviderHealth  *prometheus.GaugeVec // 0=healthy, 1=degraded, 2=down
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total requests routed through the gateway",
		}, []string{"requested_model", "provider", "status"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_latency_ms",
			Help:    "Total request latency in milliseconds, from receipt to final response",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}, []string{"requested_model", "provider"}),
		RetryCount: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_retry_count",
			Help:    "Number of failed upstream attempts before the final attempt",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		}, []string{"requested_model"}),
		TokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_tokens_total",
			Help: "Total tokens accounted, by direction",
		}, []string{"requested_model", "direction"}), // direction: input|output
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_circuit_state",
			Help: "Per-provider circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"provider"}),
		ProviderHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_provider_health",
			Help: "Per-provider health tracker state (0=healthy, 1=degraded, 2=down)",
		}, []string{"provider"}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestLatency, m.RetryCount, m.TokensTotal, m.CircuitState, m.ProviderHealth)
	return m
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
