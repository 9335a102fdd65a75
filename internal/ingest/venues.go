package ingest

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crime-atlas/internal/config"
	"github.com/sells-group/crime-atlas/internal/fetcher"
	"github.com/sells-group/crime-atlas/internal/model"
)

// ParseVenues reads food hygiene style business listings and keeps the
// night-time economy types. An empty types list keeps every row.
func ParseVenues(ctx context.Context, r io.Reader, cols config.ColumnConfig, types []string, encoding string) ([]model.Venue, SourceReport, error) {
	rep := newSourceReport("venues")

	tbl, err := fetcher.ReadTable(ctx, r, fetcher.CSVOptions{LazyQuotes: true, Encoding: encoding})
	if err != nil {
		return nil, rep, eris.Wrap(err, "ingest: read venues")
	}
	if missing := tbl.Missing(cols.VenueName, cols.VenueLat, cols.VenueLng); len(missing) > 0 {
		return nil, rep, eris.Errorf("ingest: venues table is missing columns %s", strings.Join(missing, ", "))
	}

	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}

	nameCol := tbl.Col(cols.VenueName)
	typeCol := tbl.Col(cols.VenueType)
	latCol := tbl.Col(cols.VenueLat)
	lngCol := tbl.Col(cols.VenueLng)

	var out []model.Venue
	for _, row := range tbl.Rows {
		rep.Read++

		kind := fetcher.Get(row, typeCol)
		if len(allowed) > 0 && !allowed[strings.ToLower(kind)] {
			rep.drop(DropVenueType)
			continue
		}

		lat, okLat := fetcher.GetFloat(row, latCol)
		lng, okLng := fetcher.GetFloat(row, lngCol)
		if !okLat || !okLng || (lat == 0 && lng == 0) {
			rep.drop(DropMissingCoords)
			continue
		}
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			rep.drop(DropBadCoords)
			continue
		}

		out = append(out, model.Venue{
			Name:      fetcher.Get(row, nameCol),
			Type:      kind,
			Latitude:  lat,
			Longitude: lng,
		})
		rep.Kept++
	}
	return out, rep, nil
}
