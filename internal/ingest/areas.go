package ingest

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crime-atlas/internal/config"
	"github.com/sells-group/crime-atlas/internal/fetcher"
)

// Deprivation holds the IMD domain scores for one area.
type Deprivation struct {
	IMDScore   float64
	Income     float64
	Employment float64
	Education  float64
	Health     float64
	Crime      float64
}

// ParseDeprivation reads IMD scores keyed by area code. The code and overall
// IMD score columns are required; domain columns that are absent read as zero.
func ParseDeprivation(t *fetcher.Table, cols config.ColumnConfig) (map[string]Deprivation, SourceReport, error) {
	rep := newSourceReport("deprivation")
	if missing := t.Missing(cols.DeprivationCode, cols.IMDScore); len(missing) > 0 {
		return nil, rep, eris.Errorf("ingest: deprivation table is missing columns %s", strings.Join(missing, ", "))
	}

	codeCol := t.Col(cols.DeprivationCode)
	imdCol := t.Col(cols.IMDScore)
	domain := []struct {
		col int
		set func(*Deprivation, float64)
	}{
		{t.Col(cols.Income), func(d *Deprivation, v float64) { d.Income = v }},
		{t.Col(cols.Employment), func(d *Deprivation, v float64) { d.Employment = v }},
		{t.Col(cols.Education), func(d *Deprivation, v float64) { d.Education = v }},
		{t.Col(cols.Health), func(d *Deprivation, v float64) { d.Health = v }},
		{t.Col(cols.Crime), func(d *Deprivation, v float64) { d.Crime = v }},
	}

	out := make(map[string]Deprivation, len(t.Rows))
	for _, row := range t.Rows {
		rep.Read++
		code := fetcher.Get(row, codeCol)
		if code == "" {
			rep.drop(DropMissingCode)
			continue
		}
		imd, ok := fetcher.GetFloat(row, imdCol)
		if !ok {
			rep.drop(DropBadValue)
			continue
		}
		if _, dup := out[code]; dup {
			rep.drop(DropDuplicateID)
			continue
		}

		d := Deprivation{IMDScore: imd}
		for _, dc := range domain {
			if v, ok := fetcher.GetFloat(row, dc.col); ok {
				dc.set(&d, v)
			}
		}
		out[code] = d
		rep.Kept++
	}
	return out, rep, nil
}

// ParsePopulation reads resident population keyed by area code.
func ParsePopulation(t *fetcher.Table, cols config.ColumnConfig) (map[string]float64, SourceReport, error) {
	rep := newSourceReport("population")
	if missing := t.Missing(cols.PopulationCode, cols.PopulationTotal); len(missing) > 0 {
		return nil, rep, eris.Errorf("ingest: population table is missing columns %s", strings.Join(missing, ", "))
	}

	codeCol := t.Col(cols.PopulationCode)
	popCol := t.Col(cols.PopulationTotal)

	out := make(map[string]float64, len(t.Rows))
	for _, row := range t.Rows {
		rep.Read++
		code := fetcher.Get(row, codeCol)
		if code == "" {
			rep.drop(DropMissingCode)
			continue
		}
		pop, ok := fetcher.GetFloat(row, popCol)
		if !ok || pop < 0 {
			rep.drop(DropBadValue)
			continue
		}
		if _, dup := out[code]; dup {
			rep.drop(DropDuplicateID)
			continue
		}
		out[code] = pop
		rep.Kept++
	}
	return out, rep, nil
}
