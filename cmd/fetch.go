package main

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/crime-atlas/internal/config"
	"github.com/sells-group/crime-atlas/internal/fetcher"
)

var fetchNoExtract bool

var fetchCmd = &cobra.Command{
	Use:   "fetch [url...]",
	Short: "Download raw data files",
	Long:  "Downloads the configured (or given) URLs into the raw data directory. Archives are extracted next to the download.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			cfg.Fetch.URLs = args
		}
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:    cfg.Fetch.UserAgent,
			Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries:   cfg.Fetch.MaxRetries,
			DefaultRate:  rate.Limit(cfg.Fetch.RatePerSec),
			RateLimiters: fetcher.DefaultRateLimiters(),
		})
		return fetchAll(cmd.Context(), f, cfg.Fetch, cfg.Data.RawDir, !fetchNoExtract)
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchNoExtract, "no-extract", false, "keep downloaded archives without extracting them")
	rootCmd.AddCommand(fetchCmd)
}

// fetchAll downloads every URL into rawDir with bounded concurrency.
func fetchAll(ctx context.Context, f fetcher.Fetcher, fc config.FetchConfig, rawDir string, extract bool) error {
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return eris.Wrapf(err, "fetch: create %s", rawDir)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(fc.Concurrency, 1))

	var downloaded, unchanged atomic.Int64
	for _, raw := range fc.URLs {
		g.Go(func() error {
			name, err := fileName(raw)
			if err != nil {
				return err
			}
			dest := filepath.Join(rawDir, name)
			log := zap.L().With(zap.String("url", raw), zap.String("file", dest))

			changed, n, err := f.SaveIfChanged(gctx, raw, dest)
			if err != nil {
				return eris.Wrapf(err, "fetch: %s", raw)
			}
			if !changed {
				unchanged.Add(1)
				log.Info("fetch: unchanged")
				return nil
			}
			downloaded.Add(1)
			log.Info("fetch: downloaded", zap.Int64("bytes", n))

			if extract && strings.EqualFold(filepath.Ext(name), ".zip") {
				dir := strings.TrimSuffix(dest, filepath.Ext(dest))
				files, err := extractArchive(dest, dir)
				if err != nil {
					return eris.Wrapf(err, "fetch: extract %s", name)
				}
				log.Info("fetch: extracted", zap.Int("files", len(files)), zap.String("dir", dir))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	zap.L().Info("fetch: complete",
		zap.Int64("downloaded", downloaded.Load()),
		zap.Int64("unchanged", unchanged.Load()),
	)
	return nil
}

// extractArchive unpacks the street-level files of a police.uk archive. An
// archive without any, such as a boundary shapefile bundle, is unpacked whole.
func extractArchive(zipPath, dir string) ([]string, error) {
	files, err := fetcher.ExtractZIPMatching(zipPath, dir, fetcher.StreetCSV)
	if err != nil || len(files) > 0 {
		return files, err
	}
	return fetcher.ExtractZIP(zipPath, dir)
}

// fileName derives the local file name from the last URL path segment.
func fileName(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: parse url %q", raw)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", eris.Errorf("fetch: cannot derive a file name from %q", raw)
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return name, nil
}
