package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/crime-atlas/internal/boundary"
	"github.com/sells-group/crime-atlas/internal/config"
	"github.com/sells-group/crime-atlas/internal/fetcher"
	"github.com/sells-group/crime-atlas/internal/model"
)

// Pipeline runs the offline cleaning and spatial join step.
type Pipeline struct {
	cfg         config.DataConfig
	tempDir     string
	concurrency int
	log         *zap.Logger
}

// NewPipeline creates a Pipeline over the configured raw inputs.
func NewPipeline(cfg *config.Config) *Pipeline {
	conc := cfg.Fetch.Concurrency
	if conc < 1 {
		conc = 4
	}
	return &Pipeline{
		cfg:         cfg.Data,
		tempDir:     cfg.Fetch.TempDir,
		concurrency: conc,
		log:         zap.L().With(zap.String("component", "ingest")),
	}
}

type loaded struct {
	layer       *boundary.Layer
	deprivation map[string]Deprivation
	population  map[string]float64
	venues      []model.Venue
	incidents   [][]model.Incident

	depReport   SourceReport
	popReport   SourceReport
	venueReport SourceReport
	incReports  []SourceReport
}

// Run loads every source, merges area attributes and assigns incidents and
// venues to the area containing them.
func (p *Pipeline) Run(ctx context.Context) (*model.Dataset, *Report, error) {
	files, err := p.incidentFiles()
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, eris.New("ingest: no incident files found")
	}
	p.log.Info("ingest: loading sources", zap.Int("incident_files", len(files)))

	var in loaded
	in.incidents = make([][]model.Incident, len(files))
	in.incReports = make([]SourceReport, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency + 4)

	g.Go(func() error {
		layer, err := boundary.Load(p.cfg.Boundaries, boundary.Options{
			CodeField:      p.cfg.Columns.BoundaryCode,
			NameField:      p.cfg.Columns.BoundaryName,
			LocalNameField: p.cfg.Columns.BoundaryLocalName,
			NamePrefix:     p.cfg.Region,
		})
		if err != nil {
			return err
		}
		in.layer = layer
		return nil
	})

	g.Go(func() error {
		tbl, err := p.loadTable(gctx, p.cfg.Deprivation, "deprivation")
		if err != nil {
			return err
		}
		in.deprivation, in.depReport, err = ParseDeprivation(tbl, p.cfg.Columns)
		return err
	})

	if p.cfg.Population != "" {
		g.Go(func() error {
			tbl, err := p.loadTable(gctx, p.cfg.Population, "population")
			if err != nil {
				return err
			}
			in.population, in.popReport, err = ParsePopulation(tbl, p.cfg.Columns)
			return err
		})
	}

	if p.cfg.Venues != "" {
		g.Go(func() error {
			f, err := os.Open(p.cfg.Venues)
			if err != nil {
				return eris.Wrapf(err, "ingest: open venues %s", p.cfg.Venues)
			}
			defer f.Close() //nolint:errcheck
			in.venues, in.venueReport, err = ParseVenues(gctx, f, p.cfg.Columns, p.cfg.VenueTypes, p.cfg.VenueEncode)
			return err
		})
	}

	for i, path := range files {
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return eris.Wrapf(err, "ingest: open %s", path)
			}
			defer f.Close() //nolint:errcheck
			incs, rep, err := ParseIncidents(gctx, filepath.Base(path), f, nil)
			if err != nil {
				return err
			}
			in.incidents[i] = incs
			in.incReports[i] = rep
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	ds, rep := p.merge(&in)
	rep.Log(p.log)
	return ds, rep, nil
}

func (p *Pipeline) merge(in *loaded) (*model.Dataset, *Report) {
	rep := &Report{
		BoundariesSkipped: in.layer.Skipped,
		BoundariesOutside: in.layer.OutsideRegion,
	}

	areas := make([]model.Area, 0, len(in.layer.Areas))
	for _, a := range in.layer.Areas {
		if d, ok := in.deprivation[a.Code]; ok {
			a.IMDScore, a.Income, a.Employment = d.IMDScore, d.Income, d.Employment
			a.Education, a.Health, a.Crime = d.Education, d.Health, d.Crime
		} else {
			a.NoDeprivation = true
			rep.AreasMissingDeprivation = append(rep.AreasMissingDeprivation, a.Code)
		}
		if pop, ok := in.population[a.Code]; ok {
			a.Population = pop
		} else {
			rep.AreasMissingPopulation = append(rep.AreasMissingPopulation, a.Code)
		}
		areas = append(areas, a)
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].Code < areas[j].Code })
	rep.Areas = len(areas)

	idx := boundary.NewIndex(areas)

	incRep := newSourceReport("incidents")
	seen := make(map[string]struct{})
	var incidents []model.Incident
	for i, batch := range in.incidents {
		fr := in.incReports[i]
		p.log.Debug("ingest: incident file", zap.String("file", fr.Source), zap.Int("read", fr.Read), zap.Int("kept", fr.Kept))
		incRep.Read += fr.Read
		incRep.Kept += fr.Kept
		for reason, n := range fr.Dropped {
			incRep.Dropped[reason] += n
		}

		for _, inc := range batch {
			if inc.ID != "" {
				if _, dup := seen[inc.ID]; dup {
					incRep.unkeep(DropDuplicateID)
					continue
				}
				seen[inc.ID] = struct{}{}
			}
			code, ok := idx.Locate(inc.Longitude, inc.Latitude)
			if !ok {
				incRep.unkeep(DropOutsideRegion)
				continue
			}
			inc.AreaCode = code
			incidents = append(incidents, inc)
		}
	}
	sort.SliceStable(incidents, func(i, j int) bool {
		if !incidents[i].Month.Equal(incidents[j].Month) {
			return incidents[i].Month.Before(incidents[j].Month)
		}
		return incidents[i].AreaCode < incidents[j].AreaCode
	})

	venues := make([]model.Venue, 0, len(in.venues))
	for _, v := range in.venues {
		code, ok := idx.Locate(v.Longitude, v.Latitude)
		if !ok {
			in.venueReport.unkeep(DropOutsideRegion)
			continue
		}
		v.AreaCode = code
		venues = append(venues, v)
	}

	rep.Sources = append(rep.Sources, incRep, in.depReport)
	if p.cfg.Population != "" {
		rep.Sources = append(rep.Sources, in.popReport)
	}
	if p.cfg.Venues != "" {
		rep.Sources = append(rep.Sources, in.venueReport)
	}

	return &model.Dataset{Areas: areas, Incidents: incidents, Venues: venues}, rep
}

// incidentFiles expands the configured incident paths. Directories are
// searched for street CSVs, and zip archives are extracted first.
func (p *Pipeline) incidentFiles() ([]string, error) {
	var files []string
	for _, path := range p.cfg.Incidents {
		info, err := os.Stat(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: stat %s", path)
		}

		switch {
		case info.IsDir():
			found, err := findCSVs(path)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
		case strings.EqualFold(filepath.Ext(path), ".zip"):
			dest := filepath.Join(p.tempDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
			extracted, err := fetcher.ExtractZIPMatching(path, dest, fetcher.StreetCSV)
			if err != nil {
				return nil, eris.Wrapf(err, "ingest: extract %s", path)
			}
			sort.Strings(extracted)
			files = append(files, extracted...)
		default:
			files = append(files, path)
		}
	}
	return files, nil
}

func findCSVs(dir string) ([]string, error) {
	var street, other []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}
		if fetcher.StreetCSV(d.Name()) {
			street = append(street, path)
		} else {
			other = append(other, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: walk %s", dir)
	}
	// A police.uk archive also carries outcomes and stop-and-search files.
	if len(street) > 0 {
		sort.Strings(street)
		return street, nil
	}
	sort.Strings(other)
	return other, nil
}

func (p *Pipeline) loadTable(ctx context.Context, path, kind string) (*fetcher.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		tbl, err := fetcher.ReadXLSXTable(path, fetcher.XLSXOptions{SheetName: p.cfg.Sheets[kind]})
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read %s", kind)
		}
		return tbl, nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open %s %s", kind, path)
		}
		defer f.Close() //nolint:errcheck
		tbl, err := fetcher.ReadTable(ctx, f, fetcher.CSVOptions{LazyQuotes: true})
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read %s", kind)
		}
		return tbl, nil
	}
}
