package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crime-atlas/internal/dataset"
	"github.com/sells-group/crime-atlas/internal/ingest"
)

var prepareQuiet bool

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Clean raw inputs and write the merged dataset",
	Long:  "Loads incidents, boundaries, deprivation, population and venue files, joins incidents and venues to areas and writes the merged dataset.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("prepare"); err != nil {
			return err
		}
		ctx := cmd.Context()

		ds, report, err := ingest.NewPipeline(cfg).Run(ctx)
		if err != nil {
			return err
		}

		build, err := dataset.Save(ctx, cfg, ds)
		if err != nil {
			return err
		}

		log := zap.L().With(zap.String("component", "prepare"))
		report.Log(log)
		fields := []zap.Field{zap.String("dir", cfg.Output.Dir), zap.String("driver", cfg.Store.Driver)}
		if build != nil {
			fields = append(fields, zap.String("build_id", build.ID))
		}
		log.Info("prepare: dataset written", fields...)

		if !prepareQuiet {
			report.Print(os.Stdout)
		}
		return nil
	},
}

func init() {
	prepareCmd.Flags().BoolVar(&prepareQuiet, "quiet", false, "do not print the cleaning report")
	rootCmd.AddCommand(prepareCmd)
}
