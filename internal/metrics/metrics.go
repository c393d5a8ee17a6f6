// Package metrics exposes Prometheus collectors for the HTTP surface and
// CSV imports on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weighttracker/internal/app"
)

// Metrics records request and import counters on its own registry.
type Metrics struct {
	reg          *prometheus.Registry
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	importRows   *prometheus.CounterVec
	importsTotal prometheus.Counter
}

// New registers the collectors, including the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weighttracker",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weighttracker",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weighttracker",
			Name:      "import_rows_total",
			Help:      "CSV import rows by outcome.",
		}, []string{"outcome"}),
		importsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weighttracker",
			Name:      "imports_total",
			Help:      "Completed CSV imports.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.duration, m.importRows, m.importsTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveRequest records one served request. route should be the route
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveImport implements app.ImportObserver.
func (m *Metrics) ObserveImport(r app.ImportReport) {
	m.importsTotal.Inc()
	m.importRows.WithLabelValues("imported").Add(float64(r.Imported))
	m.importRows.WithLabelValues("duplicate").Add(float64(r.Duplicates))
	m.importRows.WithLabelValues("skipped").Add(float64(r.Skipped))
}

var _ app.ImportObserver = (*Metrics)(nil)
