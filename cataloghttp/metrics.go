package cataloghttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ggoodman/drinks-catalog-go/auth"
)

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	authDecisions *prometheus.CounterVec
	keyFetches    *prometheus.CounterVec
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewMetrics registers the catalog collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		authDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "auth",
			Name:      "decisions_total",
			Help:      "Authorization decisions by failure kind, or \"granted\".",
		}, []string{"kind"}),
		keyFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "auth",
			Name:      "jwks_fetches_total",
			Help:      "JWK set fetch attempts by result.",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "catalog",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(m.authDecisions, m.keyFetches, m.requests, m.duration)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveDecision counts a gate decision. Pass it to auth.WithDecisionHook.
func (m *Metrics) ObserveDecision(kind auth.Kind) {
	label := string(kind)
	if label == "" {
		label = "granted"
	}
	m.authDecisions.WithLabelValues(label).Inc()
}

// ObserveKeyFetch counts a JWK set fetch. Pass it to auth.WithFetchHook.
func (m *Metrics) ObserveKeyFetch(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.keyFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) observeRequest(route string, status int, d time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
