// Package metrics exposes Prometheus collectors for the HTTP boundary and the
// committed engine operations.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"retailpos/internal/app"
	"retailpos/internal/domain"
	"retailpos/internal/domain/documents"
	"retailpos/internal/domain/posting"
	"retailpos/internal/domain/returns"
	"retailpos/internal/domain/revision"
)

const namespace = "retailpos"

// Operation labels.
const (
	OperationFinalize = "finalize"
	OperationAmend    = "amend"
	OperationReturn   = "return"
	OperationVoid     = "void"
	OperationRepost   = "repost"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	operations      *prometheus.CounterVec
	postingWarnings *prometheus.CounterVec
	stockMovements  *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Committed engine operations.",
		}, []string{"operation"}),
		postingWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "posting_warnings_total",
			Help:      "Committed operations whose ledger posting failed and awaits a re-post.",
		}, []string{"operation"}),
		stockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "stock_movements_total",
			Help:      "Stock movements appended by committed operations.",
		}, []string{"operation"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.operations,
		m.postingWarnings,
		m.stockMovements,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) operation(name string, movements int, warning *posting.Warning) {
	m.operations.WithLabelValues(name).Inc()
	if movements > 0 {
		m.stockMovements.WithLabelValues(name).Add(float64(movements))
	}
	if warning != nil {
		m.postingWarnings.WithLabelValues(name).Inc()
	}
}

// Attach subscribes the engine counters to the after-commit hooks of e.
func (m *Metrics) Attach(e *app.Engine) {
	documentHook := func(name string) domain.Hook[*documents.Result] {
		return func(_ context.Context, r *documents.Result) error {
			m.operation(name, len(r.Movements), r.Warning)
			return nil
		}
	}
	e.Documents.Hooks().On(domain.AfterFinalize, documentHook(OperationFinalize))
	e.Documents.Hooks().On(domain.AfterVoid, documentHook(OperationVoid))
	e.Documents.Hooks().On(domain.AfterRepost, documentHook(OperationRepost))

	e.Revisions.Hooks().On(domain.AfterAmend, func(_ context.Context, r *revision.Result) error {
		m.operation(OperationAmend, len(r.Movements), r.Warning)
		return nil
	})
	e.Returns.Hooks().On(domain.AfterReturn, func(_ context.Context, r *returns.Result) error {
		m.operation(OperationReturn, len(r.Movements), r.Warning)
		return nil
	})
}
