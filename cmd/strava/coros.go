package main

import (
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/alainabartfeld/strava-activities/internal/config"
	"github.com/alainabartfeld/strava-activities/internal/coros"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
)

func newCorosCmd(cfg config.Config) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "coros",
		Short: "Combine Coros .fit files into a record snapshot",
		Long: `Decodes every .fit file in COROS_FIT_DIR (or --dir) and writes one row per recorded
sample to <data>/coros/<prefix>_<YYYY-MM-DD>[_N].csv. Files that cannot be decoded are
skipped and counted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := startSession(ctx, cfg, cfg.CorosPrefix)
			if err != nil {
				return err
			}
			defer sess.Close(ctx)
			logger := sess.logger

			paths := cfg.Paths()
			source := paths.CorosFit
			if dir != "" {
				source = paths.Resolve(dir)
			}

			result, err := coros.NewConverter(coros.WithLogger(logger)).ConvertDir(ctx, source)
			if err != nil {
				return err
			}
			if result.Records == 0 {
				color.Yellow("No records found in %s (%d of %d files skipped)", source, result.Skipped, result.Files)
				return nil
			}

			if err := os.MkdirAll(paths.CorosData, 0o755); err != nil {
				return &snapshot.WriteError{Path: paths.CorosData, Err: err}
			}
			writer := snapshot.NewWriter(paths.CorosData, snapshot.CSVLayout(cfg.CorosPrefix), snapshot.WithLogger(logger))
			entry, err := writer.Write(ctx, result.Table)
			if err != nil {
				return err
			}

			color.Green("Coros import complete: %s (%d records)", filepath.Base(entry.Path), result.Records)
			if result.Skipped > 0 {
				color.Yellow("Skipped %d of %d files", result.Skipped, result.Files)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory of .fit files (defaults to COROS_FIT_DIR)")
	return cmd
}
