package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alainabartfeld/strava-activities/internal/api"
	"github.com/alainabartfeld/strava-activities/internal/auth"
	"github.com/alainabartfeld/strava-activities/internal/config"
	"github.com/alainabartfeld/strava-activities/internal/logging"
	"github.com/alainabartfeld/strava-activities/internal/observability"
	"github.com/alainabartfeld/strava-activities/internal/report"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
	httptransport "github.com/alainabartfeld/strava-activities/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, closeLogs, err := logging.Init(logging.Options{
		Level:  cfg.LogLevel,
		ToFile: cfg.LogToFile,
		Dir:    cfg.Paths().Logs,
		Prefix: "report_api",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup failed: %v\n", err)
		os.Exit(1)
	}
	defer closeLogs()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: "strava-report-api",
		UseStdout:   cfg.TracesToStdout,
	})
	if err != nil {
		logger.Fatal("failed to initialise tracing", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	resolver := snapshot.NewResolver(cfg.Paths().Data, snapshot.CSVLayout(cfg.SnapshotPrefix), snapshot.WithLogger(logger))
	service := report.NewService(resolver, report.WithLogger(logger))
	defer service.Close()

	handler := api.NewHandler(service, api.WithLogger(logger))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.Instrument("strava-report-api",
		httptransport.LogRequests(logger, authMiddleware.Wrap(mux))))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("report api listening", zap.String("addr", cfg.HTTPAddress), zap.String("data_dir", cfg.Paths().Data))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
