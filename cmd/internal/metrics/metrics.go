package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authsrv"

// Metrics holds all Prometheus collectors for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	AuthOutcomes    *prometheus.CounterVec
	PasswordHashing prometheus.Histogram
	HTTPDuration    *prometheus.HistogramVec
	Throttled       prometheus.Counter
}

// New creates the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		AuthOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_outcomes_total",
			Help:      "Lifecycle operations by operation and result",
		}, []string{"op", "result"}),
		PasswordHashing: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "password_hash_seconds",
			Help:      "Time spent hashing or verifying a password, including queueing for a worker",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status class",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		Throttled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttled_requests_total",
			Help:      "Requests rejected by the request throttle",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg, ErrorHandling: promhttp.ContinueOnError})
}

// Outcome counts one lifecycle operation result, e.g. ("login", "invalid_credentials").
func (m *Metrics) Outcome(op, result string) {
	if m == nil {
		return
	}
	m.AuthOutcomes.WithLabelValues(op, result).Inc()
}

// ObserveHashing records how long a password operation took.
func (m *Metrics) ObserveHashing(d time.Duration) {
	if m == nil {
		return
	}
	m.PasswordHashing.Observe(d.Seconds())
}

// ObserveHTTP records one request.
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// IncThrottled counts a throttled request.
func (m *Metrics) IncThrottled() {
	if m == nil {
		return
	}
	m.Throttled.Inc()
}
