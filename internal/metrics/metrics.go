// Package metrics holds the Prometheus instruments shared by the coordinator,
// the query pipeline and the HTTP server. A nil *Metrics is valid and records
// nothing, which keeps tests free of registry plumbing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "farmsense"

type Metrics struct {
	Arrivals              *prometheus.CounterVec // records received, by kind
	Commits               prometheus.Counter     // commit cycles started
	PersistErrors         *prometheus.CounterVec // failed upserts, by domain
	PersistedRows         *prometheus.CounterVec // rows written, by domain
	CommitQueueDepth      prometheus.Gauge
	Queries               *prometheus.CounterVec // rag queries, by mode
	DecompositionFallback prometheus.Counter
	RetrievalErrors       prometheus.Counter
	TelemetryErrors       *prometheus.CounterVec // degraded fetches, by domain
	ModelErrors           *prometheus.CounterVec // failed model calls, by mode
	HTTPRequests          *prometheus.CounterVec // by route and status
}

// NewMetrics creates and registers every instrument on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Arrivals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinator_arrivals_total",
			Help:      "Source records received by the coordinator",
		}, []string{"kind"}),
		Commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinator_commits_total",
			Help:      "Commit cycles triggered by the trigger kind",
		}),
		PersistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinator_persist_errors_total",
			Help:      "Failed upserts per domain",
		}, []string{"domain"}),
		PersistedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinator_persisted_rows_total",
			Help:      "Rows upserted per domain",
		}, []string{"domain"}),
		CommitQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coordinator_commit_queue_depth",
			Help:      "Commits waiting for the committer",
		}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rag_queries_total",
			Help:      "RAG queries handled, by mode",
		}, []string{"mode"}),
		DecompositionFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rag_decomposition_fallbacks_total",
			Help:      "Questions searched verbatim because decomposition failed",
		}),
		RetrievalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rag_retrieval_errors_total",
			Help:      "Search phrases skipped after a document store error",
		}),
		TelemetryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rag_telemetry_errors_total",
			Help:      "Telemetry domains degraded to empty",
		}, []string{"domain"}),
		ModelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rag_model_errors_total",
			Help:      "Failed language model calls, by mode",
		}, []string{"mode"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}

	reg.MustRegister(
		m.Arrivals,
		m.Commits,
		m.PersistErrors,
		m.PersistedRows,
		m.CommitQueueDepth,
		m.Queries,
		m.DecompositionFallback,
		m.RetrievalErrors,
		m.TelemetryErrors,
		m.ModelErrors,
		m.HTTPRequests,
	)
	return m
}

func (m *Metrics) ObserveArrival(kind string) {
	if m == nil {
		return
	}
	m.Arrivals.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveCommit() {
	if m == nil {
		return
	}
	m.Commits.Inc()
}

func (m *Metrics) ObservePersist(domain string, rows int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PersistErrors.WithLabelValues(domain).Inc()
		return
	}
	m.PersistedRows.WithLabelValues(domain).Add(float64(rows))
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.CommitQueueDepth.Set(float64(n))
}

func (m *Metrics) ObserveQuery(mode string) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(mode).Inc()
}

func (m *Metrics) ObserveDecompositionFallback() {
	if m == nil {
		return
	}
	m.DecompositionFallback.Inc()
}

func (m *Metrics) ObserveRetrievalError() {
	if m == nil {
		return
	}
	m.RetrievalErrors.Inc()
}

func (m *Metrics) ObserveTelemetryError(domain string) {
	if m == nil {
		return
	}
	m.TelemetryErrors.WithLabelValues(domain).Inc()
}

func (m *Metrics) ObserveModelError(mode string) {
	if m == nil {
		return
	}
	m.ModelErrors.WithLabelValues(mode).Inc()
}

func (m *Metrics) ObserveHTTP(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, httpCode(code)).Inc()
}

func httpCode(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
