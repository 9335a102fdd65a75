package boundary

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// LoadShapefile reads polygon boundaries from an ESRI shapefile. The file
// must already be in lon/lat (EPSG:4326); projected grids are rejected.
func LoadShapefile(path string, opts Options) (*Layer, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	b := newBuilder(opts)
	codeIdx := fieldIndex(reader, b.opts.CodeField)
	if codeIdx < 0 {
		return nil, eris.Errorf("boundary: shapefile %s has no %s field", path, b.opts.CodeField)
	}
	nameIdx := fieldIndex(reader, b.opts.NameField)
	localIdx := fieldIndex(reader, b.opts.LocalNameField)

	for reader.Next() {
		n, shape := reader.Shape()

		poly, ok := shape.(*shp.Polygon)
		var mp *geom.MultiPolygon
		if ok {
			mp = shapeToMultiPolygon(poly)
		} else {
			zap.L().Debug("boundary: skipping non-polygon record", zap.Int("record", n))
		}

		if err := b.add(
			attribute(reader, codeIdx),
			attribute(reader, nameIdx),
			attribute(reader, localIdx),
			mp,
		); err != nil {
			return nil, err
		}
	}
	return &b.layer, nil
}

func fieldIndex(reader *shp.Reader, name string) int {
	if name == "" {
		return -1
	}
	for i, f := range reader.Fields() {
		fieldName := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(fieldName, name) {
			return i
		}
	}
	return -1
}

func attribute(reader *shp.Reader, idx int) string {
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
}

// shapeToMultiPolygon groups shapefile parts into polygons. Clockwise parts
// start a new polygon; counter-clockwise parts are holes of the last one.
func shapeToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		hole := xy.IsRingCounterClockwise(geom.XY, flat)
		if hole && current != nil {
			if err := current.Push(ring); err != nil {
				zap.L().Debug("boundary: skipping malformed hole", zap.Int32("part", i), zap.Error(err))
			}
			continue
		}

		flush()
		current = geom.NewPolygon(geom.XY)
		if err := current.Push(ring); err != nil {
			zap.L().Debug("boundary: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			current = nil
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
