package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/areas/{code}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/api/areas/E1", "/api/areas/E2", "/ok"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.InDelta(t, 2, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/areas/{code}", "GET", "404")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/ok", "GET", "200")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ActiveRequests), 0)
}

func TestCacheAndDataset(t *testing.T) {
	m := New()
	m.CacheLookup("map", true)
	m.CacheLookup("map", false)
	m.CacheLookup("map", false)
	m.SetDataset(3, 100, 7)

	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheHits.WithLabelValues("map")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.CacheMisses.WithLabelValues("map")), 0)
	assert.InDelta(t, 100, testutil.ToFloat64(m.DatasetRows.WithLabelValues("incidents")), 0)
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetDataset(1, 2, 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `crime_atlas_dataset_rows{kind="venues"} 3`), body)
	assert.Contains(t, body, "go_goroutines")
}
