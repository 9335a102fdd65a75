// Package dataset reads and writes the merged dataset produced by prepare.
package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/crime-atlas/internal/ingest"
	"github.com/sells-group/crime-atlas/internal/model"
)

// Output file names inside the dataset directory.
const (
	IncidentsFile = "app_data_incidents.csv"
	MasterFile    = "app_data_master.csv"
	VenuesFile    = "venues.csv"
)

type incidentRow struct {
	ID        string  `csv:"Crime ID"`
	Month     string  `csv:"Month"`
	Category  string  `csv:"Crime type"`
	Latitude  float64 `csv:"Latitude"`
	Longitude float64 `csv:"Longitude"`
	Location  string  `csv:"Location"`
	Outcome   string  `csv:"Last outcome category"`
	AreaCode  string  `csv:"LSOA21CD"`
}

type masterRow struct {
	Code        string   `csv:"LSOA21CD"`
	Name        string   `csv:"LSOA21NM"`
	LocalName   string   `csv:"LSOA21LN"`
	Population  float64  `csv:"POP2022Total"`
	IMDScore    *float64 `csv:"IMDScore"`
	Income      *float64 `csv:"Income"`
	Employment  *float64 `csv:"Employment"`
	Education   *float64 `csv:"EducationScore"`
	Health      *float64 `csv:"HealthScore"`
	Crime       *float64 `csv:"CrimeScore"`
	TotalCrimes int      `csv:"Total_Crimes"`
	CrimeRate   *float64 `csv:"Crime_Rate"`
}

type venueRow struct {
	Name      string  `csv:"BUSINESS_NAME"`
	Type      string  `csv:"BUSINESS_TYPE"`
	Latitude  float64 `csv:"Latitude"`
	Longitude float64 `csv:"Longitude"`
	AreaCode  string  `csv:"LSOA21CD"`
}

// WriteCSV writes the dataset into dir, creating it if needed. The master
// file carries all-time crime totals and rates for each area.
func WriteCSV(dir string, ds *model.Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "dataset: create %s", dir)
	}

	if err := writeRows(filepath.Join(dir, IncidentsFile), incidentRow{}, incidentRows(ds.Incidents)); err != nil {
		return err
	}

	counts := ds.CrimeCounts()
	master := make([]masterRow, len(ds.Areas))
	for i, a := range ds.Areas {
		master[i] = masterRow{
			Code:        a.Code,
			Name:        a.Name,
			LocalName:   a.LocalName,
			Population:  a.Population,
			IMDScore:    a.ScoreOf(model.MetricIMDScore),
			Income:      a.ScoreOf(model.MetricIncome),
			Employment:  a.ScoreOf(model.MetricEmployment),
			Education:   a.ScoreOf(model.MetricEducation),
			Health:      a.ScoreOf(model.MetricHealth),
			Crime:       a.ScoreOf(model.MetricCrime),
			TotalCrimes: counts[a.Code],
			CrimeRate:   model.CrimeRate(counts[a.Code], a.Population),
		}
	}
	if err := writeRows(filepath.Join(dir, MasterFile), masterRow{}, master); err != nil {
		return err
	}

	venues := make([]venueRow, len(ds.Venues))
	for i, v := range ds.Venues {
		venues[i] = venueRow{Name: v.Name, Type: v.Type, Latitude: v.Latitude, Longitude: v.Longitude, AreaCode: v.AreaCode}
	}
	return writeRows(filepath.Join(dir, VenuesFile), venueRow{}, venues)
}

func incidentRows(incidents []model.Incident) []incidentRow {
	rows := make([]incidentRow, len(incidents))
	for i, inc := range incidents {
		rows[i] = incidentRow{
			ID:        inc.ID,
			Month:     inc.Month.Format(model.MonthLayout),
			Category:  inc.Category,
			Latitude:  inc.Latitude,
			Longitude: inc.Longitude,
			Location:  inc.Location,
			Outcome:   inc.Outcome,
			AreaCode:  inc.AreaCode,
		}
	}
	return rows
}

// WriteIncidents writes incidents with the same columns as the incidents file.
func WriteIncidents(w io.Writer, incidents []model.Incident) error {
	return EncodeRows(w, incidentRow{}, incidentRows(incidents))
}

// IncidentHeader lists the incident columns in file order.
func IncidentHeader() []string {
	h, _ := csvutil.Header(incidentRow{}, "csv")
	return h
}

// IncidentRecord formats one incident as a row aligned with IncidentHeader.
func IncidentRecord(inc model.Incident) []string {
	return []string{
		inc.ID,
		inc.Month.Format(model.MonthLayout),
		inc.Category,
		strconv.FormatFloat(inc.Latitude, 'f', -1, 64),
		strconv.FormatFloat(inc.Longitude, 'f', -1, 64),
		inc.Location,
		inc.Outcome,
		inc.AreaCode,
	}
}

func writeRows[T any](path string, header T, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if err := EncodeRows(f, header, rows); err != nil {
		return eris.Wrapf(err, "dataset: write %s", filepath.Base(path))
	}
	return f.Close()
}

// EncodeRows writes a header followed by rows. The header is written even
// when rows is empty.
func EncodeRows[T any](w io.Writer, header T, rows []T) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(header); err != nil {
		return eris.Wrap(err, "encode header")
	}
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return eris.Wrap(err, "encode row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "flush")
}

// ReadCSV reads a dataset written by WriteCSV. Geometry is not part of the
// CSV files and is left nil. A missing venues file yields no venues.
func ReadCSV(dir string) (*model.Dataset, error) {
	ds := &model.Dataset{}

	masters, err := readRows[masterRow](filepath.Join(dir, MasterFile))
	if err != nil {
		return nil, err
	}
	for _, m := range masters {
		ds.Areas = append(ds.Areas, model.Area{
			Code:          m.Code,
			Name:          m.Name,
			LocalName:     m.LocalName,
			Population:    m.Population,
			IMDScore:      deref(m.IMDScore),
			Income:        deref(m.Income),
			Employment:    deref(m.Employment),
			Education:     deref(m.Education),
			Health:        deref(m.Health),
			Crime:         deref(m.Crime),
			NoDeprivation: m.IMDScore == nil,
		})
	}

	incidents, err := readRows[incidentRow](filepath.Join(dir, IncidentsFile))
	if err != nil {
		return nil, err
	}
	for i, r := range incidents {
		m, ok := ingest.ParseMonth(r.Month)
		if !ok {
			return nil, eris.Errorf("dataset: %s row %d has invalid month %q", IncidentsFile, i+2, r.Month)
		}
		ds.Incidents = append(ds.Incidents, model.Incident{
			ID:        r.ID,
			Month:     m,
			Category:  r.Category,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Location:  r.Location,
			Outcome:   r.Outcome,
			AreaCode:  r.AreaCode,
		})
	}

	venuePath := filepath.Join(dir, VenuesFile)
	if _, err := os.Stat(venuePath); err != nil {
		return ds, nil
	}
	venues, err := readRows[venueRow](venuePath)
	if err != nil {
		return nil, err
	}
	for _, v := range venues {
		ds.Venues = append(ds.Venues, model.Venue{Name: v.Name, Type: v.Type, Latitude: v.Latitude, Longitude: v.Longitude, AreaCode: v.AreaCode})
	}

	return ds, nil
}

func readRows[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	dec, err := csvutil.NewDecoder(csv.NewReader(f))
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read header of %s", filepath.Base(path))
	}

	var out []T
	for {
		var row T
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: decode %s", filepath.Base(path))
		}
		out = append(out, row)
	}
	return out, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
