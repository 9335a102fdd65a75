// Package metrics exposes Prometheus instrumentation for the dashboard.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the dashboard collectors registered on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  prometheus.Gauge
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	CacheEntries    prometheus.Gauge
	DatasetRows     *prometheus.GaugeVec
}

// New registers the collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crime_atlas_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status_code"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crime_atlas_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route", "method"}),
		ActiveRequests: f.NewGauge(prometheus.GaugeOpts{
			Name: "crime_atlas_http_active_requests",
			Help: "Requests currently being served.",
		}),
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crime_atlas_view_cache_hits_total",
			Help: "View cache hits by view.",
		}, []string{"view"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crime_atlas_view_cache_misses_total",
			Help: "View cache misses by view.",
		}, []string{"view"}),
		CacheEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "crime_atlas_view_cache_entries",
			Help: "Entries held by the view cache.",
		}),
		DatasetRows: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crime_atlas_dataset_rows",
			Help: "Rows in the loaded dataset by kind.",
		}, []string{"kind"}),
	}
}

// SetDataset records the size of the loaded dataset.
func (m *Metrics) SetDataset(areas, incidents, venues int) {
	m.DatasetRows.WithLabelValues("areas").Set(float64(areas))
	m.DatasetRows.WithLabelValues("incidents").Set(float64(incidents))
	m.DatasetRows.WithLabelValues("venues").Set(float64(venues))
}

// CacheLookup counts a view cache hit or miss.
func (m *Metrics) CacheLookup(view string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(view).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(view).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.ActiveRequests.Inc()
		defer m.ActiveRequests.Dec()

		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		m.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.status)).Inc()
		m.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
