package main

import (
	"path/filepath"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alainabartfeld/strava-activities/internal/config"
	"github.com/alainabartfeld/strava-activities/internal/observability"
	"github.com/alainabartfeld/strava-activities/internal/persistence/postgres"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
)

func newWarehouseCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "warehouse",
		Short: "Full-refresh the Postgres warehouse from the newest snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cfg.PostgresURL == "" {
				return &config.MissingEnvError{Keys: []string{"POSTGRES_URL"}}
			}

			sess, err := startSession(ctx, cfg, "warehouse")
			if err != nil {
				return err
			}
			defer sess.Close(ctx)
			logger := sess.logger

			resolver := snapshot.NewResolver(cfg.Paths().Data, snapshot.CSVLayout(cfg.SnapshotPrefix), snapshot.WithLogger(logger))
			entry, ok, err := resolver.Latest(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return snapshot.ErrNoSnapshot
			}

			table, err := snapshot.ReadTable(entry.Path)
			if err != nil {
				return err
			}

			pool, err := pgxpool.New(ctx, cfg.PostgresURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := postgres.NewRepository(pool)
			if err := repo.EnsureSchema(ctx); err != nil {
				return err
			}
			result, err := repo.LoadSnapshot(ctx, entry, table)
			if err != nil {
				return err
			}
			logger.Info("warehouse refreshed",
				zap.String("file", filepath.Base(entry.Path)),
				zap.Int("rows", result.Rows),
				zap.Int("skipped", result.Skipped),
			)

			if err := observability.Push(ctx, cfg.PushgatewayURL, "strava_warehouse"); err != nil {
				logger.Warn("metrics push failed", zap.Error(err))
			}

			color.Green("Loaded %d activities from %s", result.Rows, filepath.Base(entry.Path))
			if result.Skipped > 0 {
				color.Yellow("Skipped %d rows without a unique id", result.Skipped)
			}
			return nil
		},
	}
}

