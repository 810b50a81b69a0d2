package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/alainabartfeld/strava-activities/internal/config"
)

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "strava",
		Short: "Strava activity export and reporting",
		Long: `Exports the authenticated athlete's complete Strava activity history into
dated, versioned CSV snapshots and runs reports over the newest snapshot.

Required environment:
  STRAVA_CLIENT_ID, STRAVA_CLIENT_SECRET, STRAVA_REFRESH_TOKEN`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newExportCmd(cfg))
	rootCmd.AddCommand(newLatestCmd(cfg))
	rootCmd.AddCommand(newReportCmd(cfg))
	rootCmd.AddCommand(newWarehouseCmd(cfg))
	rootCmd.AddCommand(newAuthorizeCmd(cfg))
	rootCmd.AddCommand(newTokenCmd(cfg))
	rootCmd.AddCommand(newCorosCmd(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}
