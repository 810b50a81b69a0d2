package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alainabartfeld/strava-activities/internal/config"
	"github.com/alainabartfeld/strava-activities/internal/events"
	"github.com/alainabartfeld/strava-activities/internal/observability"
	"github.com/alainabartfeld/strava-activities/internal/pipeline"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
	"github.com/alainabartfeld/strava-activities/internal/strava"
)

func newExportCmd(cfg config.Config) *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download every activity into a new snapshot",
		Long: `Refreshes the access token, downloads the complete activity history page by page
and writes it to <data>/<prefix>_<YYYY-MM-DD>[_N].csv. Nothing is written unless every page
was fetched. An existing snapshot is never overwritten.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := startSession(ctx, cfg, cfg.SnapshotPrefix)
			if err != nil {
				return err
			}
			defer sess.Close(ctx)
			logger := sess.logger

			creds, err := cfg.Credentials()
			if err != nil {
				logger.Error("missing configuration", zap.Error(err))
				return err
			}

			clientOpts := []strava.Option{
				strava.WithLogger(logger),
				strava.WithTimeout(cfg.HTTPTimeout),
				strava.WithPageSize(cfg.PageSize),
				strava.WithRequestsPerMinute(cfg.RequestsPerMinute),
			}
			tokens := strava.NewTokenRefresher(cfg.TokenURL, creds, clientOpts...)
			client := strava.NewClient(cfg.ActivitiesURL, clientOpts...)

			dataDir := cfg.Paths().Data
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return &snapshot.WriteError{Path: dataDir, Err: err}
			}
			writer := snapshot.NewWriter(dataDir, snapshot.CSVLayout(cfg.SnapshotPrefix), snapshot.WithLogger(logger))

			opts := []pipeline.Option{pipeline.WithLogger(logger)}
			if publish && len(cfg.KafkaBrokers) > 0 {
				producer := events.NewProducer(cfg.KafkaBrokers, logger)
				defer producer.Close()

				pubOpts := []events.Option{events.WithLogger(logger)}
				if cfg.SchemaRegistryURL != "" {
					pubOpts = append(pubOpts, events.WithSchemaRegistry(events.NewSchemaRegistryClient(cfg.SchemaRegistryURL)))
				}
				opts = append(opts, pipeline.WithPublisher(events.NewPublisher(producer, cfg.SnapshotTopic, pubOpts...)))
			}

			result, runErr := pipeline.NewExport(tokens, client, writer, opts...).Run(ctx)

			if cfg.PushgatewayURL != "" {
				if err := observability.Push(ctx, cfg.PushgatewayURL, "strava_export"); err != nil {
					logger.Warn("metrics push failed", zap.Error(err))
				}
			}
			if runErr != nil {
				return runErr
			}

			color.Green("Export complete: %s (%d activities, %s)",
				filepath.Base(result.Snapshot.Path), result.Activities, result.Elapsed.Round(time.Millisecond))
			if result.Published {
				printf("Published %s to %s\n", events.EventTypeSnapshotCreated, cfg.SnapshotTopic)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&publish, "publish", true, "Publish a snapshot.created event when KAFKA_BROKERS is set")
	return cmd
}
