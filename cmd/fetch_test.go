package main

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crime-atlas/internal/config"
)

type fakeFetcher struct {
	mu      sync.Mutex
	bodies  map[string][]byte
	current map[string]bool
	calls   []string
}

func (f *fakeFetcher) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeFetcher) DownloadToFile(context.Context, string, string) (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeFetcher) DownloadIfChanged(context.Context, string, string) (io.ReadCloser, string, bool, error) {
	return nil, "", false, errors.New("not implemented")
}

func (f *fakeFetcher) SaveIfChanged(_ context.Context, url, path string) (bool, int64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if f.current[url] {
		return false, 0, nil
	}
	body, ok := f.bodies[url]
	if !ok {
		return false, 0, errors.New("404")
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return false, 0, err
	}
	return true, int64(len(body)), nil
}

func streetArchive(t *testing.T) []byte {
	t.Helper()
	return archive(t, "2024-01/2024-01-avon-and-somerset-street.csv", "2024-01/2024-01-avon-and-somerset-outcomes.csv")
}

func archive(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("Crime ID,Month\n"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFetchAll_DownloadsAndExtracts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "raw")
	f := &fakeFetcher{
		bodies: map[string][]byte{
			"https://data.police.uk/data/archive/2024-03.zip": streetArchive(t),
			"https://example.org/files/imd%202019.csv":        []byte("LSOA code,IMD\n"),
		},
		current: map[string]bool{"https://example.org/venues.csv": true},
	}
	fc := config.FetchConfig{
		URLs: []string{
			"https://data.police.uk/data/archive/2024-03.zip",
			"https://example.org/files/imd%202019.csv",
			"https://example.org/venues.csv",
		},
		Concurrency: 2,
	}

	require.NoError(t, fetchAll(context.Background(), f, fc, dir, true))
	assert.Len(t, f.calls, 3)

	assert.FileExists(t, filepath.Join(dir, "imd 2019.csv"))
	assert.FileExists(t, filepath.Join(dir, "2024-03", "2024-01", "2024-01-avon-and-somerset-street.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "2024-03", "2024-01", "2024-01-avon-and-somerset-outcomes.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "venues.csv"), "unchanged files are left alone")
}

func TestFetchAll_BoundaryBundleExtractedWhole(t *testing.T) {
	dir := t.TempDir()
	url := "https://example.org/boundaries/LSOA_2021.zip"
	f := &fakeFetcher{bodies: map[string][]byte{url: archive(t, "LSOA_2021.shp", "LSOA_2021.dbf", "LSOA_2021.prj")}}

	require.NoError(t, fetchAll(context.Background(), f, config.FetchConfig{URLs: []string{url}}, dir, true))
	for _, name := range []string{"LSOA_2021.shp", "LSOA_2021.dbf", "LSOA_2021.prj"} {
		assert.FileExists(t, filepath.Join(dir, "LSOA_2021", name))
	}
}

func TestFetchAll_NoExtract(t *testing.T) {
	dir := t.TempDir()
	url := "https://data.police.uk/data/archive/2024-03.zip"
	f := &fakeFetcher{bodies: map[string][]byte{url: streetArchive(t)}}

	require.NoError(t, fetchAll(context.Background(), f, config.FetchConfig{URLs: []string{url}}, dir, false))
	assert.FileExists(t, filepath.Join(dir, "2024-03.zip"))
	assert.NoDirExists(t, filepath.Join(dir, "2024-03"))
}

func TestFetchAll_Error(t *testing.T) {
	f := &fakeFetcher{}
	err := fetchAll(context.Background(), f, config.FetchConfig{URLs: []string{"https://example.org/missing.csv"}}, t.TempDir(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.csv")
}

func TestFileName(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "https://data.police.uk/data/archive/2024-03.zip", want: "2024-03.zip"},
		{raw: "https://example.org/a/b/File%20Name.xlsx?download=1", want: "File Name.xlsx"},
		{raw: "https://example.org/", wantErr: true},
		{raw: "https://example.org", wantErr: true},
		{raw: "://bad", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := fileName(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
