package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/crime-atlas/internal/analysis"
	"github.com/sells-group/crime-atlas/internal/dataset"
	"github.com/sells-group/crime-atlas/internal/model"
	"github.com/sells-group/crime-atlas/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a summary of the prepared dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var (
			ds    *model.Dataset
			build *store.Build
			err   error
		)
		if cfg.Store.Driver == "sqlite" {
			st, openErr := dataset.OpenStore(ctx, cfg)
			if openErr != nil {
				return openErr
			}
			defer st.Close() //nolint:errcheck

			if build, err = st.LatestBuild(ctx); err != nil {
				return err
			}
			ds, err = st.LoadDataset(ctx)
		} else {
			ds, err = dataset.ReadCSV(cfg.Output.Dir)
		}
		if err != nil {
			return err
		}

		formatStatus(os.Stdout, ds, build)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// formatStatus writes the dataset summary and per-category counts to out.
func formatStatus(out io.Writer, ds *model.Dataset, build *store.Build) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	ov := analysis.OverviewOf(ds.Incidents)
	noPop := 0
	for _, a := range ds.Areas {
		if a.Population <= 0 {
			noPop++
		}
	}

	_, _ = fmt.Fprintf(w, "areas\t%d\n", len(ds.Areas))
	_, _ = fmt.Fprintf(w, "areas without population\t%d\n", noPop)
	_, _ = fmt.Fprintf(w, "incidents\t%d\n", len(ds.Incidents))
	_, _ = fmt.Fprintf(w, "venues\t%d\n", len(ds.Venues))
	dr := ov.DateRange
	if dr == "" {
		dr = "-"
	}
	_, _ = fmt.Fprintf(w, "date range\t%s\n", dr)
	if build != nil {
		_, _ = fmt.Fprintf(w, "latest build\t%s (%s)\n", build.ID, build.CreatedAt.Format("2006-01-02 15:04"))
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "CATEGORY\tINCIDENTS")
	_, _ = fmt.Fprintln(w, "--------\t---------")
	for _, c := range analysis.CategoryCounts(ds.Incidents) {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", c.Category, c.Count)
	}
	_ = w.Flush()
}
