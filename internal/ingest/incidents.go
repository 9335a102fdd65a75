package ingest

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crime-atlas/internal/fetcher"
	"github.com/sells-group/crime-atlas/internal/model"
)

// Police.uk street-level CSV headers.
const (
	ColCrimeID   = "Crime ID"
	ColMonth     = "Month"
	ColLongitude = "Longitude"
	ColLatitude  = "Latitude"
	ColLocation  = "Location"
	ColCrimeType = "Crime type"
	ColOutcome   = "Last outcome category"
)

// ParseIncidents reads one police.uk street CSV. Rows that cannot be used are
// dropped and counted; the error is reserved for unreadable input or missing columns.
// seen carries non-empty crime IDs across files and may be nil.
func ParseIncidents(ctx context.Context, source string, r io.Reader, seen map[string]struct{}) ([]model.Incident, SourceReport, error) {
	rep := newSourceReport(source)
	if seen == nil {
		seen = make(map[string]struct{})
	}

	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{LazyQuotes: true})

	var out []model.Incident
	var header *fetcher.Table
	var idCol, monthCol, lngCol, latCol, locCol, typeCol, outCol int
	for row := range rowCh {
		if header == nil {
			header = fetcher.NewTable(row, nil)
			if missing := header.Missing(ColMonth, ColLongitude, ColLatitude, ColCrimeType); len(missing) > 0 {
				// Drain so the reader goroutine can exit.
				for range rowCh {
				}
				return nil, rep, eris.Errorf("ingest: %s is missing columns %s", source, strings.Join(missing, ", "))
			}
			idCol = header.Col(ColCrimeID)
			monthCol = header.Col(ColMonth)
			lngCol = header.Col(ColLongitude)
			latCol = header.Col(ColLatitude)
			locCol = header.Col(ColLocation)
			typeCol = header.Col(ColCrimeType)
			outCol = header.Col(ColOutcome)
			continue
		}

		rep.Read++

		lngText, latText := fetcher.Get(row, lngCol), fetcher.Get(row, latCol)
		if lngText == "" || latText == "" {
			rep.drop(DropMissingCoords)
			continue
		}
		lng, lat, ok := parseCoords(lngText, latText)
		if !ok {
			rep.drop(DropBadCoords)
			continue
		}

		month, ok := ParseMonth(fetcher.Get(row, monthCol))
		if !ok {
			rep.drop(DropBadMonth)
			continue
		}

		category := fetcher.Get(row, typeCol)
		if category == "" {
			rep.drop(DropMissingCategory)
			continue
		}

		id := fetcher.Get(row, idCol)
		if id != "" {
			if _, dup := seen[id]; dup {
				rep.drop(DropDuplicateID)
				continue
			}
			seen[id] = struct{}{}
		}

		out = append(out, model.Incident{
			ID:        id,
			Month:     month,
			Category:  category,
			Latitude:  lat,
			Longitude: lng,
			Location:  fetcher.Get(row, locCol),
			Outcome:   fetcher.Get(row, outCol),
		})
		rep.Kept++
	}

	if err := <-errCh; err != nil {
		return nil, rep, eris.Wrapf(err, "ingest: read %s", source)
	}
	if header == nil {
		return nil, rep, eris.Errorf("ingest: %s is empty", source)
	}
	return out, rep, nil
}

// ParseMonth accepts "2024-03" and "2024-03-15" and returns the first of the month in UTC.
func ParseMonth(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{model.MonthLayout, "2006-01-02", "2006/01", "2006-01-02T15:04:05Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return model.MonthStart(t), true
		}
	}
	return time.Time{}, false
}

func parseCoords(lngText, latText string) (float64, float64, bool) {
	lng, err := strconv.ParseFloat(lngText, 64)
	if err != nil {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(latText, 64)
	if err != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	if lat == 0 && lng == 0 {
		return 0, 0, false
	}
	return lng, lat, true
}
