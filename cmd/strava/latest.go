package main

import (
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/alainabartfeld/strava-activities/internal/config"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
)

func newLatestCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Print the newest snapshot in the data directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := startSession(ctx, cfg, "latest")
			if err != nil {
				return err
			}
			defer sess.Close(ctx)

			resolver := snapshot.NewResolver(cfg.Paths().Data, snapshot.CSVLayout(cfg.SnapshotPrefix), snapshot.WithLogger(sess.logger))
			entry, ok, err := resolver.Latest(ctx)
			if err != nil {
				return err
			}
			if !ok {
				color.Yellow("no snapshot found in %s", cfg.Paths().Data)
				return nil
			}

			today := ""
			if entry.Version.DateString() == config.Today(time.Now()) {
				today = " (today)"
			}
			printf("%s\n", entry.Path)
			printf("date:    %s%s\n", entry.Version.DateString(), today)
			printf("version: %d\n", entry.Version.Seq)
			return nil
		},
	}
}
