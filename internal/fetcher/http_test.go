package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func quickFetcher(retries int) *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:   "atlas-test",
		Timeout:     5 * time.Second,
		MaxRetries:  retries,
		BaseBackoff: time.Millisecond,
	})
}

func TestDownload_SendsUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "atlas-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("Crime ID,Month\n"))
	}))
	defer srv.Close()

	body, err := quickFetcher(1).Download(context.Background(), srv.URL+"/2024-01.zip")
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "Crime ID,Month\n", string(data))
}

func TestDownloadToFile_WritesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "imd.csv")
	n, err := quickFetcher(1).DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func TestDownloadToFile_BadPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	_, err := quickFetcher(1).DownloadToFile(context.Background(), srv.URL, filepath.Join(t.TempDir(), "missing", "out.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create file")
}

func TestDownload_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := quickFetcher(3).Download(context.Background(), srv.URL)
	require.NoError(t, err)
	_ = body.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownload_RetriesTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := quickFetcher(2).Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted")
	assert.Equal(t, int32(2), calls.Load())
}

func TestDownload_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := quickFetcher(3).Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDownload_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := quickFetcher(1).Download(ctx, srv.URL)
	require.Error(t, err)
}

func TestDownloadIfChanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v2"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v2"`)
		_, _ = w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	f := quickFetcher(1)

	body, etag, changed, err := f.DownloadIfChanged(context.Background(), srv.URL, `"v1"`)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, `"v2"`, etag)
	data, _ := io.ReadAll(body)
	_ = body.Close()
	assert.Equal(t, "fresh", string(data))

	body, etag, changed, err = f.DownloadIfChanged(context.Background(), srv.URL, `"v2"`)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Nil(t, body)
	assert.Equal(t, `"v2"`, etag)
}

func TestDownloadIfChanged_NoPriorTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("If-None-Match"))
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	body, etag, changed, err := quickFetcher(1).DownloadIfChanged(context.Background(), srv.URL, "")
	require.NoError(t, err)
	_ = body.Close()
	assert.True(t, changed)
	assert.Empty(t, etag)
}

func TestDownloadIfChanged_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, _, _, err := quickFetcher(1).DownloadIfChanged(context.Background(), srv.URL, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
}

func TestRateLimiter_SpacesRequests(t *testing.T) {
	var mu sync.Mutex
	var times []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{
		MaxRetries: 1,
		RateLimiters: map[string]*rate.Limiter{
			srv.Listener.Addr().String(): rate.NewLimiter(4, 1),
		},
	})

	for range 3 {
		body, err := f.Download(context.Background(), srv.URL)
		require.NoError(t, err)
		_ = body.Close()
	}

	require.Len(t, times, 3)
	assert.GreaterOrEqual(t, times[2].Sub(times[0]), 400*time.Millisecond)
}

func TestLimiterFor_SharesUnknownHostLimiter(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{DefaultRate: 3})

	a := f.limiterFor("https://example.org/a.csv")
	b := f.limiterFor("https://example.org/b.csv")
	assert.Same(t, a, b)
	assert.Equal(t, rate.Limit(3), a.Limit())

	police := f.limiterFor("https://data.police.uk/data/archive/latest.zip")
	assert.Equal(t, rate.Limit(15), police.Limit())
	assert.Equal(t, 30, police.Burst())
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, "crime-atlas/1.0", f.opts.UserAgent)
	assert.Equal(t, 3, f.opts.MaxRetries)
	assert.Equal(t, 30*time.Second, f.client.Timeout)
	assert.Contains(t, DefaultRateLimiters(), "data.police.uk")
}

func TestNewHTTPFetcher_NegativeRetriesUseDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := quickFetcher(-1)
	assert.Equal(t, 3, f.opts.MaxRetries)

	var body io.ReadCloser
	var err error
	require.NotPanics(t, func() {
		body, err = f.Download(context.Background(), srv.URL)
	})
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}

func TestSaveIfChanged(t *testing.T) {
	var served atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"abc"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		served.Add(1)
		w.Header().Set("ETag", `"abc"`)
		_, _ = w.Write([]byte("street,data"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "crime.zip")
	f := quickFetcher(1)

	changed, n, err := f.SaveIfChanged(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(11), n)
	tag, err := os.ReadFile(path + ".etag")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, string(tag))

	changed, _, err = f.SaveIfChanged(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int32(1), served.Load())

	require.NoError(t, os.Remove(path))
	changed, _, err = f.SaveIfChanged(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.True(t, changed, "a missing file is fetched again even with a stored tag")
}
