package dataset

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crime-atlas/internal/boundary"
	"github.com/sells-group/crime-atlas/internal/config"
	"github.com/sells-group/crime-atlas/internal/model"
	"github.com/sells-group/crime-atlas/internal/store"
)

// Save writes the dataset to the CSV directory and, for the sqlite driver,
// to the store as well. The build is nil for the csv driver.
func Save(ctx context.Context, cfg *config.Config, ds *model.Dataset) (*store.Build, error) {
	if err := WriteCSV(cfg.Output.Dir, ds); err != nil {
		return nil, err
	}
	if cfg.Store.Driver != "sqlite" {
		return nil, nil
	}

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck

	return st.SaveDataset(ctx, ds)
}

// OpenStore opens and migrates the sqlite store named by the config.
func OpenStore(ctx context.Context, cfg *config.Config) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.Store.SQLitePath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// Load reads the prepared dataset from the configured backend and attaches
// boundary geometry so the map view can draw it.
func Load(ctx context.Context, cfg *config.Config) (*model.Dataset, error) {
	var (
		ds  *model.Dataset
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, openErr := OpenStore(ctx, cfg)
		if openErr != nil {
			return nil, openErr
		}
		ds, err = st.LoadDataset(ctx)
		_ = st.Close()
	case "csv", "":
		ds, err = ReadCSV(cfg.Output.Dir)
	default:
		return nil, eris.Errorf("dataset: unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if len(ds.Areas) == 0 {
		return nil, eris.New("dataset: no areas found; run prepare first")
	}

	if cfg.Data.Boundaries != "" {
		if err := AttachGeometry(ds, cfg.Data); err != nil {
			return nil, err
		}
	}

	zap.L().Info("dataset: loaded",
		zap.String("driver", cfg.Store.Driver),
		zap.Int("areas", len(ds.Areas)),
		zap.Int("incidents", len(ds.Incidents)),
		zap.Int("venues", len(ds.Venues)),
	)
	return ds, nil
}

// AttachGeometry reads the boundary file and sets Geometry on matching areas.
func AttachGeometry(ds *model.Dataset, data config.DataConfig) error {
	layer, err := boundary.Load(data.Boundaries, boundary.Options{
		CodeField:      data.Columns.BoundaryCode,
		NameField:      data.Columns.BoundaryName,
		LocalNameField: data.Columns.BoundaryLocalName,
		NamePrefix:     data.Region,
	})
	if err != nil {
		return err
	}

	geoms := make(map[string]int, len(layer.Areas))
	for i, a := range layer.Areas {
		geoms[a.Code] = i
	}
	missing := 0
	for i := range ds.Areas {
		j, ok := geoms[ds.Areas[i].Code]
		if !ok {
			missing++
			continue
		}
		ds.Areas[i].Geometry = layer.Areas[j].Geometry
	}
	if missing > 0 {
		zap.L().Warn("dataset: areas without boundary geometry", zap.Int("count", missing))
	}
	return nil
}
