package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crime-atlas/internal/config"
	"github.com/sells-group/crime-atlas/internal/model"
)

const boundaries = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"LSOA21CD":"E01000001","LSOA21NM":"Bristol 001A"},
  "geometry":{"type":"Polygon","coordinates":[[[-2.60,51.45],[-2.59,51.45],[-2.59,51.46],[-2.60,51.46],[-2.60,51.45]]]}}
]}`

func sample() *model.Dataset {
	return &model.Dataset{
		Areas: []model.Area{
			{Code: "E01000001", Name: "Bristol 001A", LocalName: "Clifton", Population: 2000, IMDScore: 40, Income: 0.3, Employment: 0.2, Education: 50},
			{Code: "E01000002", Name: "Bristol 001B", Population: 0, NoDeprivation: true},
		},
		Incidents: []model.Incident{
			{ID: "c1", Month: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Category: "Burglary", Latitude: 51.455, Longitude: -2.595, Location: "On or near Whiteladies Road", AreaCode: "E01000001"},
			{Month: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Category: "Anti-social behaviour", Latitude: 51.456, Longitude: -2.596, AreaCode: "E01000001"},
			{Month: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Category: "Drugs", Latitude: 51.457, Longitude: -2.585, AreaCode: "E01000002"},
		},
		Venues: []model.Venue{{Name: "Café, \"Bar\"", Type: "Pub/bar/nightclub", Latitude: 51.455, Longitude: -2.594, AreaCode: "E01000001"}},
	}
}

func TestWriteAndReadCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, WriteCSV(dir, sample()))

	master, err := os.ReadFile(filepath.Join(dir, MasterFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(master)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "LSOA21CD,LSOA21NM,LSOA21LN,POP2022Total,IMDScore,Income,Employment,EducationScore,HealthScore,CrimeScore,Total_Crimes,Crime_Rate", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",2,1"), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], ",1,"), "undefined rate is written empty: %s", lines[2])
	assert.Contains(t, lines[2], ",0,,,,,,,1,", "missing deprivation scores are written empty")

	incidents, err := os.ReadFile(filepath.Join(dir, IncidentsFile))
	require.NoError(t, err)
	assert.Contains(t, string(incidents), "2024-01")
	assert.True(t, strings.HasPrefix(string(incidents), "Crime ID,Month,Crime type,"))

	ds, err := ReadCSV(dir)
	require.NoError(t, err)
	require.Len(t, ds.Areas, 2)
	assert.Equal(t, "Clifton", ds.Areas[0].LocalName)
	assert.InDelta(t, 0.3, ds.Areas[0].Income, 1e-9)
	assert.False(t, ds.Areas[0].NoDeprivation)
	assert.True(t, ds.Areas[1].NoDeprivation)
	require.Len(t, ds.Incidents, 3)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), ds.Incidents[1].Month)
	assert.Equal(t, "On or near Whiteladies Road", ds.Incidents[0].Location)
	require.Len(t, ds.Venues, 1)
	assert.Equal(t, "Café, \"Bar\"", ds.Venues[0].Name)
}

func TestWriteCSV_EmptyDatasetWritesHeaders(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteCSV(dir, &model.Dataset{}))

	data, err := os.ReadFile(filepath.Join(dir, VenuesFile))
	require.NoError(t, err)
	assert.Equal(t, "BUSINESS_NAME,BUSINESS_TYPE,Latitude,Longitude,LSOA21CD\n", string(data))

	ds, err := ReadCSV(dir)
	require.NoError(t, err)
	assert.Empty(t, ds.Incidents)
}

func TestReadCSV_DayPrecisionMonthsAndNoVenues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MasterFile), []byte("LSOA21CD,LSOA21NM,POP2022Total,IMDScore\nE1,Bristol 1,100,12\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, IncidentsFile), []byte("Month,Crime type,Latitude,Longitude,LSOA21CD\n2024-03-01,Burglary,51.4,-2.5,E1\n"), 0o644))

	ds, err := ReadCSV(dir)
	require.NoError(t, err)
	require.Len(t, ds.Incidents, 1)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), ds.Incidents[0].Month)
	assert.Empty(t, ds.Venues)
	assert.Empty(t, ds.Areas[0].LocalName)
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset: open")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MasterFile), []byte("LSOA21CD\nE1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, IncidentsFile), []byte("Month,LSOA21CD\nlast spring,E1\n"), 0o644))
	_, err = ReadCSV(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid month")
}

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	geo := filepath.Join(dir, "lsoa.geojson")
	require.NoError(t, os.WriteFile(geo, []byte(boundaries), 0o644))
	return &config.Config{
		Data: config.DataConfig{
			Boundaries: geo,
			Region:     "Bristol",
			Columns:    config.ColumnConfig{BoundaryCode: "LSOA21CD", BoundaryName: "LSOA21NM"},
		},
		Output: config.OutputConfig{Dir: filepath.Join(dir, "out")},
		Store:  config.StoreConfig{Driver: driver, SQLitePath: filepath.Join(dir, "atlas.db")},
	}
}

func TestSaveAndLoad_CSV(t *testing.T) {
	cfg := testConfig(t, "csv")
	ctx := context.Background()

	b, err := Save(ctx, cfg, sample())
	require.NoError(t, err)
	assert.Nil(t, b)

	ds, err := Load(ctx, cfg)
	require.NoError(t, err)
	require.Len(t, ds.Areas, 2)
	assert.NotNil(t, ds.Areas[0].Geometry)
	assert.Nil(t, ds.Areas[1].Geometry, "area without a boundary keeps nil geometry")
}

func TestSaveAndLoad_SQLite(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	ctx := context.Background()

	b, err := Save(ctx, cfg, sample())
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 3, b.Incidents)

	_, err = os.Stat(filepath.Join(cfg.Output.Dir, MasterFile))
	require.NoError(t, err, "csv files are written for every driver")

	ds, err := Load(ctx, cfg)
	require.NoError(t, err)
	assert.Len(t, ds.Incidents, 3)
	assert.NotNil(t, ds.Areas[0].Geometry)
}

func TestLoad_Errors(t *testing.T) {
	cfg := testConfig(t, "parquet")
	_, err := Load(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")

	cfg = testConfig(t, "csv")
	require.NoError(t, WriteCSV(cfg.Output.Dir, &model.Dataset{}))
	_, err = Load(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run prepare first")
}

func TestIncidentHeaderAndRecord(t *testing.T) {
	header := IncidentHeader()
	assert.Equal(t, []string{"Crime ID", "Month", "Crime type", "Latitude", "Longitude", "Location", "Last outcome category", "LSOA21CD"}, header)

	rec := IncidentRecord(sample().Incidents[0])
	require.Len(t, rec, len(header))
	assert.Equal(t, []string{"c1", "2024-01", "Burglary", "51.455", "-2.595", "On or near Whiteladies Road", "", "E01000001"}, rec)

	var buf strings.Builder
	require.NoError(t, WriteIncidents(&buf, sample().Incidents[2:]))
	assert.Equal(t, strings.Join(header, ",")+"\n,2024-02,Drugs,51.457,-2.585,,,E01000002\n", buf.String())
}
