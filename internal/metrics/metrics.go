// Package metrics exposes Prometheus instrumentation. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "expensetrack"

type Metrics struct {
	registry *prometheus.Registry

	mutations           *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	persistenceWrites   prometheus.Counter
	agentRequests       *prometheus.CounterVec
	agentLatency        *prometheus.HistogramVec
	busyRejections      *prometheus.CounterVec
	sampleMode          prometheus.Gauge
	httpRequests        *prometheus.CounterVec
	rateLimited         prometheus.Counter
	suspicious          prometheus.Counter
}

// New registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Ledger mutations by entity, operation and outcome.",
		}, []string{"entity", "operation", "outcome"}),
		persistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Failed durable reads or writes by storage key.",
		}, []string{"key", "operation"}),
		persistenceWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_saves_total",
			Help:      "Snapshot save passes.",
		}),
		agentRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_requests_total",
			Help:      "Agent calls by surface and outcome.",
		}, []string{"surface", "outcome"}),
		agentLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_request_duration_seconds",
			Help:      "Agent round trip latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"surface"}),
		busyRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "busy_rejections_total",
			Help:      "Agent requests rejected because one was already in flight.",
		}, []string{"surface"}),
		sampleMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sample_mode",
			Help:      "1 while sample data is active.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route pattern, method and status code.",
		}, []string{"route", "method", "status"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		suspicious: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_suspicious_requests_total",
			Help:      "Requests flagged by the security detector.",
		}),
	}
	reg.MustRegister(
		m.mutations,
		m.persistenceFailures,
		m.persistenceWrites,
		m.agentRequests,
		m.agentLatency,
		m.busyRejections,
		m.sampleMode,
		m.httpRequests,
		m.rateLimited,
		m.suspicious,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Mutation(entity, operation string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(entity, operation, outcome(err)).Inc()
}

func (m *Metrics) PersistenceFailure(key, operation string) {
	if m == nil {
		return
	}
	m.persistenceFailures.WithLabelValues(key, operation).Inc()
}

func (m *Metrics) PersistenceSave() {
	if m == nil {
		return
	}
	m.persistenceWrites.Inc()
}

// AgentRequest records one completed agent call.
func (m *Metrics) AgentRequest(surface string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.agentRequests.WithLabelValues(surface, outcome(err)).Inc()
	m.agentLatency.WithLabelValues(surface).Observe(d.Seconds())
}

func (m *Metrics) BusyRejection(surface string) {
	if m == nil {
		return
	}
	m.busyRejections.WithLabelValues(surface).Inc()
}

func (m *Metrics) SetSampleMode(on bool) {
	if m == nil {
		return
	}
	if on {
		m.sampleMode.Set(1)
	} else {
		m.sampleMode.Set(0)
	}
}

func (m *Metrics) HTTPRequest(route, method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) SuspiciousRequest() {
	if m == nil {
		return
	}
	m.suspicious.Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
