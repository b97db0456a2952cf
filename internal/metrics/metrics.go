// Package metrics exposes Prometheus collectors for the attraction queue.
// Metrics implements service.Recorder and serves its own registry on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pkordes/attraction-queue/internal/domain"
)

const namespace = "attraction_queue"

// Metrics holds every collector on a private registry, so tests and multiple
// servers in one process do not collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	queueDepth        *prometheus.GaugeVec
	entriesRemoved    *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
}

// New registers the collectors, plus the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Mutating queue and registry operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Latency of mutating operations, lock wait included.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"operation"},
		),
		queueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "People currently waiting, per attraction.",
			},
			[]string{"attraction_id"},
		),
		entriesRemoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_removed_total",
				Help:      "Queue entries that left the line, by terminal state.",
			},
			[]string{"state"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route pattern and status.",
			},
			[]string{"method", "route", "status"},
		),
	}
}

// ObserveOperation implements service.Recorder.
func (m *Metrics) ObserveOperation(op string, err error, elapsed time.Duration) {
	m.operations.WithLabelValues(op, domain.Kind(err)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetDepth implements service.Recorder.
func (m *Metrics) SetDepth(attractionID int64, depth int) {
	m.queueDepth.WithLabelValues(attractionLabel(attractionID)).Set(float64(depth))
}

// EntriesRemoved implements service.Recorder.
func (m *Metrics) EntriesRemoved(state domain.EntryState, n int) {
	if n <= 0 {
		return
	}
	m.entriesRemoved.WithLabelValues(string(state)).Add(float64(n))
}

// ForgetAttraction implements service.Recorder.
func (m *Metrics) ForgetAttraction(attractionID int64) {
	m.queueDepth.DeleteLabelValues(attractionLabel(attractionID))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry, for tests and for pushing to other exporters.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Middleware counts requests by chi route pattern rather than raw path, so
// ids do not explode the label space. Unmatched requests are labelled "unmatched".
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
	})
}

func attractionLabel(id int64) string {
	return strconv.FormatInt(id, 10)
}
