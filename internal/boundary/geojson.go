package boundary

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// rawFeature keeps geometry undecoded so that numeric feature ids and
// unsupported geometry types do not fail the whole collection.
type rawFeature struct {
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type rawCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

// LoadGeoJSON reads a GeoJSON FeatureCollection of Polygon or MultiPolygon features.
func LoadGeoJSON(path string, opts Options) (*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: read %s", path)
	}
	return DecodeGeoJSON(data, opts)
}

// DecodeGeoJSON decodes a FeatureCollection held in memory.
func DecodeGeoJSON(data []byte, opts Options) (*Layer, error) {
	var fc rawCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "boundary: decode geojson")
	}
	if fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("boundary: expected FeatureCollection, got %q", fc.Type)
	}

	b := newBuilder(opts)
	keys := propertyKeys(b.opts)
	for i, f := range fc.Features {
		props := foldProperties(f.Properties, keys)
		mp, err := decodeMultiPolygon(f.Geometry)
		if err != nil {
			zap.L().Debug("boundary: skipping feature geometry",
				zap.Int("feature", i),
				zap.String("code", props[strings.ToLower(b.opts.CodeField)]),
				zap.Error(err),
			)
			mp = nil
		}
		if err := b.add(
			props[strings.ToLower(b.opts.CodeField)],
			props[strings.ToLower(b.opts.NameField)],
			props[strings.ToLower(b.opts.LocalNameField)],
			mp,
		); err != nil {
			return nil, err
		}
	}
	return &b.layer, nil
}

func propertyKeys(opts Options) map[string]bool {
	keys := map[string]bool{
		strings.ToLower(opts.CodeField): true,
		strings.ToLower(opts.NameField): true,
	}
	if opts.LocalNameField != "" {
		keys[strings.ToLower(opts.LocalNameField)] = true
	}
	return keys
}

// foldProperties picks the wanted properties using case-insensitive keys.
func foldProperties(props map[string]any, keys map[string]bool) map[string]string {
	out := make(map[string]string, len(keys))
	for k, v := range props {
		lk := strings.ToLower(k)
		if keys[lk] {
			out[lk] = propString(v)
		}
	}
	return out
}

func decodeMultiPolygon(raw json.RawMessage) (*geom.MultiPolygon, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, eris.New("missing geometry")
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, eris.Wrap(err, "decode geometry")
	}
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t, nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(t.Layout())
		if err := mp.Push(t); err != nil {
			return nil, eris.Wrap(err, "wrap polygon")
		}
		return mp, nil
	default:
		return nil, eris.Errorf("unsupported geometry %T", g)
	}
}
