// Package dashboard serves the map, correlation and explorer views over HTTP.
package dashboard

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/crime-atlas/internal/analysis"
	"github.com/sells-group/crime-atlas/internal/config"
	"github.com/sells-group/crime-atlas/internal/metrics"
	"github.com/sells-group/crime-atlas/internal/model"
)

//go:embed static
var staticFS embed.FS

// Server holds the loaded dataset and renders views from it. The dataset is
// never modified after New returns.
type Server struct {
	ds       *model.Dataset
	cfg      config.DashboardConfig
	origins  []string
	defaults []string
	first    time.Time
	last     time.Time
	overview analysis.Overview
	center   [2]float64
	cache    *ViewCache
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// New prepares a server for ds. A nil cache disables response caching and a
// nil metrics skips instrumentation.
func New(ds *model.Dataset, cfg config.DashboardConfig, srv config.ServerConfig, cache *ViewCache, m *metrics.Metrics) *Server {
	s := &Server{
		ds:       ds,
		cfg:      cfg,
		origins:  srv.AllowedOrigins,
		defaults: cfg.DefaultCrimes,
		overview: analysis.OverviewOf(ds.Incidents),
		center:   [2]float64{cfg.CenterLat, cfg.CenterLng},
		cache:    cache,
		metrics:  m,
		log:      zap.L().With(zap.String("component", "dashboard")),
	}
	s.first, s.last, _ = analysis.DateRange(ds.Incidents)
	if s.cfg.TopN <= 0 {
		s.cfg.TopN = 10
	}
	if s.cfg.ExportName == "" {
		s.cfg.ExportName = "crime_filtered"
	}
	if s.center == [2]float64{} {
		s.center = areasCenter(ds.Areas)
	}
	if m != nil {
		m.SetDataset(len(ds.Areas), len(ds.Incidents), len(ds.Venues))
	}
	return s
}

// Router builds the HTTP handler for every dashboard route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			MaxAge:         300,
		}))
	}

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/filters", s.handleFilters)
		r.Get("/overview", s.handleOverview)
		r.Get("/map/areas", s.cached("map_areas", s.renderAreas))
		r.Get("/map/legend", s.cached("map_legend", s.renderLegend))
		r.Get("/map/heat", s.cached("map_heat", s.renderHeat))
		r.Get("/map/venues", s.handleVenues)
		r.Get("/stats/categories", s.cached("stats_categories", s.renderCategories))
		r.Get("/stats/trends", s.cached("stats_trends", s.renderTrends))
		r.Get("/stats/correlation", s.cached("stats_correlation", s.renderCorrelation))
		r.Get("/stats/scatter", s.cached("stats_scatter", s.renderScatter))
		r.Get("/explorer", s.cached("explorer", s.renderExplorer))
		r.Get("/cache", s.handleCacheStats)
	})
	r.Get("/charts/categories.png", s.cached("chart_categories", s.renderCategoryChart))
	r.Get("/charts/trends.png", s.cached("chart_trends", s.renderTrendChart))
	r.Get("/export.csv", s.handleExportCSV)
	r.Get("/export.xlsx", s.handleExportXLSX)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// renderFunc produces a response body for a parsed request.
type renderFunc func(r *http.Request, req request) (body []byte, contentType string, err error)

// cached wraps a renderer with request parsing, the view cache and error
// mapping.
func (s *Server) cached(view string, render renderFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := s.parseRequest(r.URL.Query())
		if err != nil {
			s.fail(w, err)
			return
		}
		key := req.key(extraKey(r)...)

		if s.cache != nil {
			body, ct, ok := s.cache.Get(view, key)
			if s.metrics != nil {
				s.metrics.CacheLookup(view, ok)
				s.metrics.CacheEntries.Set(float64(s.cache.Len()))
			}
			if ok {
				w.Header().Set("Content-Type", ct)
				w.Header().Set("X-Cache", "hit")
				_, _ = w.Write(body)
				return
			}
		}

		body, ct, err := render(r, req)
		if err != nil {
			s.fail(w, err)
			return
		}
		if s.cache != nil {
			s.cache.Put(view, key, body, ct)
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("X-Cache", "miss")
		_, _ = w.Write(body)
	}
}

// extraKey lists the view-specific query parameters that change output.
func extraKey(r *http.Request) []string {
	q := r.URL.Query()
	var out []string
	for _, k := range []string{"x", "y", "n"} {
		if v := q.Get(k); v != "" {
			out = append(out, k, v)
		}
	}
	return out
}

// notFound marks render errors where the filter selects nothing to draw.
type notFound struct{ msg string }

func (e *notFound) Error() string { return e.msg }

func (s *Server) fail(w http.ResponseWriter, err error) {
	var br *badRequest
	var nf *notFound
	switch {
	case errors.As(err, &br):
		writeError(w, http.StatusBadRequest, br.msg)
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.msg)
	default:
		s.log.Error("dashboard: render failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func jsonBody(v any) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "application/json", nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	page, err := fs.ReadFile(staticFS, "static/index.html")
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"areas":     len(s.ds.Areas),
		"incidents": len(s.ds.Incidents),
		"venues":    len(s.ds.Venues),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Stats())
}
