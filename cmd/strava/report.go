package main

import (
	"errors"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/alainabartfeld/strava-activities/internal/config"
	"github.com/alainabartfeld/strava-activities/internal/report"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
)

func newReportCmd(cfg config.Config) *cobra.Command {
	var (
		year   int
		only   []string
		format string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run the report battery against the newest snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := startSession(ctx, cfg, "report")
			if err != nil {
				return err
			}
			defer sess.Close(ctx)

			if year == 0 {
				year = time.Now().Year()
			}

			resolver := snapshot.NewResolver(cfg.Paths().Data, snapshot.CSVLayout(cfg.SnapshotPrefix), snapshot.WithLogger(sess.logger))
			service := report.NewService(resolver, report.WithLogger(sess.logger))
			defer service.Close()

			var results []report.Result
			if len(only) == 0 {
				results, err = service.RunAll(ctx, year)
			} else {
				for _, name := range only {
					var res report.Result
					res, err = service.Run(ctx, name, year)
					if err != nil {
						break
					}
					results = append(results, res)
				}
			}
			if errors.Is(err, snapshot.ErrNoSnapshot) {
				color.Yellow("no snapshot found in %s; run `strava export` first", cfg.Paths().Data)
				return nil
			}
			if err != nil {
				return err
			}
			return report.Render(os.Stdout, results, format)
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Calendar year to report on (default: current year)")
	cmd.Flags().StringSliceVar(&only, "only", nil, "Run only the named reports")
	cmd.Flags().StringVar(&format, "format", report.FormatTable, "Output format: table or json")
	return cmd
}
