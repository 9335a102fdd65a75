package boundary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": 7, "properties": {"LSOA21CD": "E01000002", "LSOA21NM": "Bristol 001A", "LSOA21LN": "Clifton North"},
     "geometry": {"type": "Polygon", "coordinates": [[[-2.60,51.45],[-2.59,51.45],[-2.59,51.46],[-2.60,51.46],[-2.60,51.45]]]}},
    {"type": "Feature", "properties": {"lsoa21cd": "E01000001", "lsoa21nm": "Bristol 001B"},
     "geometry": {"type": "Polygon", "coordinates": [[[-2.59,51.45],[-2.58,51.45],[-2.58,51.46],[-2.59,51.46],[-2.59,51.45]]]}},
    {"type": "Feature", "properties": {"LSOA21CD": "E01000003", "LSOA21NM": "Bristol 002A"},
     "geometry": {"type": "MultiPolygon", "coordinates": [
       [[[-2.58,51.45],[-2.55,51.45],[-2.55,51.46],[-2.58,51.46],[-2.58,51.45]],
        [[-2.57,51.452],[-2.56,51.452],[-2.56,51.458],[-2.57,51.458],[-2.57,51.452]]]]}},
    {"type": "Feature", "properties": {"LSOA21CD": "E01009999", "LSOA21NM": "Bath 001A"},
     "geometry": {"type": "Polygon", "coordinates": [[[-2.40,51.38],[-2.39,51.38],[-2.39,51.39],[-2.40,51.38]]]}},
    {"type": "Feature", "properties": {"LSOA21NM": "Bristol 005C"},
     "geometry": {"type": "Polygon", "coordinates": [[[-2.50,51.40],[-2.49,51.40],[-2.49,51.41],[-2.50,51.40]]]}},
    {"type": "Feature", "properties": {"LSOA21CD": "E01000004", "LSOA21NM": "Bristol 003A"},
     "geometry": {"type": "Point", "coordinates": [-2.6, 51.4]}},
    {"type": "Feature", "properties": {"LSOA21CD": "E01000005", "LSOA21NM": "Bristol 004A"}, "geometry": null}
  ]
}`

func loadFixture(t *testing.T, opts Options) *Layer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lsoa.geojson")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))
	layer, err := Load(path, opts)
	require.NoError(t, err)
	return layer
}

func TestLoadGeoJSON_RegionFilter(t *testing.T) {
	layer := loadFixture(t, Options{LocalNameField: "LSOA21LN", NamePrefix: "Bristol"})

	require.Len(t, layer.Areas, 3)
	assert.Equal(t, 1, layer.OutsideRegion)
	assert.Equal(t, 3, layer.Skipped, "missing code, point geometry and null geometry")

	first := layer.Areas[0]
	assert.Equal(t, "E01000002", first.Code)
	assert.Equal(t, "Bristol 001A", first.Name)
	assert.Equal(t, "Clifton North", first.LocalName)
	assert.Equal(t, 1, first.Geometry.NumPolygons())

	assert.Equal(t, "E01000001", layer.Areas[1].Code, "property names match case-insensitively")
}

func TestLoadGeoJSON_NoPrefixKeepsAll(t *testing.T) {
	layer := loadFixture(t, Options{})
	assert.Len(t, layer.Areas, 4)
	assert.Zero(t, layer.OutsideRegion)
}

func TestDecodeGeoJSON_Errors(t *testing.T) {
	_, err := DecodeGeoJSON([]byte(`{"type": "Feature"}`), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected FeatureCollection")

	_, err = DecodeGeoJSON([]byte(`not json`), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode geojson")

	projected := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"LSOA21CD":"E1","LSOA21NM":"Bristol 1"},
	  "geometry":{"type":"Polygon","coordinates":[[[358000,172000],[359000,172000],[359000,173000],[358000,172000]]]}}]}`
	_, err = DecodeGeoJSON([]byte(projected), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EPSG:4326")
}

func TestDecodeGeoJSON_MergesSplitFeatures(t *testing.T) {
	data := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"LSOA21CD":"E1","LSOA21NM":"Bristol 1"},
	   "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
	  {"type":"Feature","properties":{"LSOA21CD":"E1","LSOA21NM":"Bristol 1"},
	   "geometry":{"type":"Polygon","coordinates":[[[2,2],[3,2],[3,3],[2,2]]]}}]}`
	layer, err := DecodeGeoJSON([]byte(data), Options{})
	require.NoError(t, err)
	require.Len(t, layer.Areas, 1)
	assert.Equal(t, 2, layer.Areas[0].Geometry.NumPolygons())
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load("areas.kml", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestLoadShapefile_Missing(t *testing.T) {
	_, err := LoadShapefile(filepath.Join(t.TempDir(), "none.shp"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open shapefile")
}

func TestIndex_Locate(t *testing.T) {
	layer := loadFixture(t, Options{NamePrefix: "Bristol"})
	idx := NewIndex(layer.Areas)
	require.Equal(t, 3, idx.Len())

	tests := []struct {
		name   string
		lng    float64
		lat    float64
		want   string
		wantOK bool
	}{
		{"inside west square", -2.595, 51.455, "E01000002", true},
		{"inside east square", -2.585, 51.455, "E01000001", true},
		{"shared edge goes to lowest code", -2.59, 51.455, "E01000001", true},
		{"multipolygon outer ring", -2.575, 51.455, "E01000003", true},
		{"inside hole", -2.565, 51.455, "", false},
		{"outside everything", -2.70, 51.50, "", false},
		{"inside bbox gap", -2.555, 51.461, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := idx.Locate(tt.lng, tt.lat)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndex_BoundsAndCenter(t *testing.T) {
	layer := loadFixture(t, Options{NamePrefix: "Bristol"})
	idx := NewIndex(layer.Areas)

	b := idx.Bounds()
	assert.InDelta(t, -2.60, b.Min(0), 1e-9)
	assert.InDelta(t, -2.55, b.Max(0), 1e-9)

	lat, lng, ok := idx.Center()
	require.True(t, ok)
	assert.InDelta(t, 51.455, lat, 1e-9)
	assert.InDelta(t, -2.575, lng, 1e-9)
}

func TestIndex_Empty(t *testing.T) {
	idx := NewIndex(nil)
	_, ok := idx.Locate(-2.59, 51.45)
	assert.False(t, ok)
	_, _, ok = idx.Center()
	assert.False(t, ok)
}

func TestShapeToMultiPolygon_GroupsHoles(t *testing.T) {
	// Shapefile outer rings run clockwise and holes counter-clockwise.
	outer := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}}
	hole := []shp.Point{{X: 4, Y: 4}, {X: 6, Y: 4}, {X: 6, Y: 6}, {X: 4, Y: 6}, {X: 4, Y: 4}}
	island := []shp.Point{{X: 20, Y: 0}, {X: 20, Y: 5}, {X: 25, Y: 5}, {X: 25, Y: 0}, {X: 20, Y: 0}}

	var points []shp.Point
	points = append(points, outer...)
	points = append(points, hole...)
	points = append(points, island...)
	poly := &shp.Polygon{
		NumParts:  3,
		NumPoints: int32(len(points)),
		Parts:     []int32{0, 5, 10},
		Points:    points,
	}

	mp := shapeToMultiPolygon(poly)
	require.NotNil(t, mp)
	require.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings())
	assert.Equal(t, 1, mp.Polygon(1).NumLinearRings())

	assert.Nil(t, shapeToMultiPolygon(&shp.Polygon{}))
}
