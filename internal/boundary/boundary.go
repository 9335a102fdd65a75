// Package boundary loads LSOA polygons and resolves points to the area that contains them.
package boundary

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/crime-atlas/internal/model"
)

// Options selects the attribute names and region filter used when loading boundaries.
type Options struct {
	CodeField      string // default "LSOA21CD"
	NameField      string // default "LSOA21NM"
	LocalNameField string // optional human label, e.g. "LSOA21LN"
	NamePrefix     string // keep only areas whose name starts with this, e.g. "Bristol"
}

func (o Options) withDefaults() Options {
	if o.CodeField == "" {
		o.CodeField = "LSOA21CD"
	}
	if o.NameField == "" {
		o.NameField = "LSOA21NM"
	}
	return o
}

// Layer is the result of loading a boundary file.
type Layer struct {
	Areas         []model.Area
	Skipped       int // features with no code or no usable polygon
	OutsideRegion int // features dropped by NamePrefix
}

// Load reads boundaries from path, choosing the decoder by file extension.
func Load(path string, opts Options) (*Layer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return LoadShapefile(path, opts)
	case ".geojson", ".json":
		return LoadGeoJSON(path, opts)
	default:
		return nil, eris.Errorf("boundary: unsupported file type %q", filepath.Ext(path))
	}
}

// builder accumulates areas with the shared filtering rules of both decoders.
type builder struct {
	opts  Options
	layer Layer
	seen  map[string]int
}

func newBuilder(opts Options) *builder {
	return &builder{opts: opts.withDefaults(), seen: make(map[string]int)}
}

func (b *builder) add(code, name, local string, mp *geom.MultiPolygon) error {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if code == "" || mp == nil || mp.NumPolygons() == 0 {
		b.layer.Skipped++
		return nil
	}
	if b.opts.NamePrefix != "" && !strings.HasPrefix(strings.ToLower(name), strings.ToLower(b.opts.NamePrefix)) {
		b.layer.OutsideRegion++
		return nil
	}
	if projected(mp) {
		return eris.Errorf("boundary: area %s has coordinates outside lon/lat range; reproject the file to EPSG:4326", code)
	}

	area := model.Area{
		Code:      code,
		Name:      name,
		LocalName: strings.TrimSpace(local),
		Geometry:  mp,
	}
	if i, dup := b.seen[code]; dup {
		// Split features for one code are merged into a single multipolygon.
		existing := b.layer.Areas[i].Geometry
		for p := 0; p < mp.NumPolygons(); p++ {
			if err := existing.Push(mp.Polygon(p)); err != nil {
				return eris.Wrapf(err, "boundary: merge polygons for %s", code)
			}
		}
		return nil
	}
	b.seen[code] = len(b.layer.Areas)
	b.layer.Areas = append(b.layer.Areas, area)
	return nil
}

func projected(mp *geom.MultiPolygon) bool {
	b := mp.Bounds()
	return math.Abs(b.Min(0)) > 180 || math.Abs(b.Max(0)) > 180 ||
		math.Abs(b.Min(1)) > 90 || math.Abs(b.Max(1)) > 90
}

// propString renders a decoded JSON property value as text.
func propString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
