package boundary

import (
	"sort"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"

	"github.com/sells-group/crime-atlas/internal/model"
)

type indexEntry struct {
	code   string
	bounds *geom.Bounds
	geom   *geom.MultiPolygon
}

// Index resolves lon/lat points to the area containing them.
// It is safe for concurrent reads once built.
type Index struct {
	entries []indexEntry
	bounds  *geom.Bounds
}

// NewIndex builds an Index over areas that carry geometry. Entries are kept
// in code order so that a point on a shared edge resolves to the lowest code.
func NewIndex(areas []model.Area) *Index {
	idx := &Index{bounds: geom.NewBounds(geom.XY)}
	for _, a := range areas {
		if a.Geometry == nil || a.Geometry.NumPolygons() == 0 {
			continue
		}
		b := a.Geometry.Bounds()
		idx.entries = append(idx.entries, indexEntry{code: a.Code, bounds: b, geom: a.Geometry})
		idx.bounds.Extend(a.Geometry)
	}
	sort.Slice(idx.entries, func(i, j int) bool { return idx.entries[i].code < idx.entries[j].code })
	return idx
}

// Len returns the number of indexed areas.
func (i *Index) Len() int { return len(i.entries) }

// Locate returns the code of the area containing (lng, lat).
func (i *Index) Locate(lng, lat float64) (string, bool) {
	pt := geom.Coord{lng, lat}
	if len(i.entries) == 0 || !i.bounds.OverlapsPoint(geom.XY, pt) {
		return "", false
	}
	for _, e := range i.entries {
		if !e.bounds.OverlapsPoint(geom.XY, pt) {
			continue
		}
		if containsPoint(e.geom, pt) {
			return e.code, true
		}
	}
	return "", false
}

// Bounds returns the extent of every indexed area.
func (i *Index) Bounds() *geom.Bounds { return i.bounds }

// Center returns the midpoint of the indexed extent as (lat, lng).
func (i *Index) Center() (float64, float64, bool) {
	if len(i.entries) == 0 {
		return 0, 0, false
	}
	return (i.bounds.Min(1) + i.bounds.Max(1)) / 2, (i.bounds.Min(0) + i.bounds.Max(0)) / 2, true
}

// containsPoint reports whether pt lies inside mp or on its boundary.
// Points strictly inside a hole are outside.
func containsPoint(mp *geom.MultiPolygon, pt geom.Coord) bool {
	for p := 0; p < mp.NumPolygons(); p++ {
		poly := mp.Polygon(p)
		if poly.NumLinearRings() == 0 {
			continue
		}
		layout := poly.Layout()
		if !xy.IsPointInRing(layout, pt, poly.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for r := 1; r < poly.NumLinearRings(); r++ {
			if xy.LocatePointInRing(layout, pt, poly.LinearRing(r).FlatCoords()) == location.Interior {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}
