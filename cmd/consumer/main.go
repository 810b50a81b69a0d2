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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/alainabartfeld/strava-activities/internal/config"
	"github.com/alainabartfeld/strava-activities/internal/consumer"
	"github.com/alainabartfeld/strava-activities/internal/logging"
	"github.com/alainabartfeld/strava-activities/internal/observability"
	"github.com/alainabartfeld/strava-activities/internal/persistence/postgres"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
)

func main() {
	cfg := config.Load()

	logger, closeLogs, err := logging.Init(logging.Options{
		Level:  cfg.LogLevel,
		ToFile: cfg.LogToFile,
		Dir:    cfg.Paths().Logs,
		Prefix: "warehouse_consumer",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup failed: %v\n", err)
		os.Exit(1)
	}
	defer closeLogs()

	if cfg.PostgresURL == "" || len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("consumer requires configuration",
			zap.Error(&config.MissingEnvError{Keys: []string{"POSTGRES_URL", "KAFKA_BROKERS"}}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: "strava-warehouse-consumer",
		UseStdout:   cfg.TracesToStdout,
	})
	if err != nil {
		logger.Fatal("failed to initialise tracing", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	repo := postgres.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to apply warehouse schema", zap.Error(err))
	}
	handler := consumer.NewWarehouseHandler(repo, cfg.Paths().Data, snapshot.CSVLayout(cfg.SnapshotPrefix), logger)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		logger.Info("consumer metrics listening", zap.String("addr", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		Topic:           cfg.SnapshotTopic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  0,
		ReadLagInterval: -1,
	})
	proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger))

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer reader.Close()

		logger.Info("consumer started", zap.String("topic", cfg.SnapshotTopic), zap.String("group", cfg.ConsumerGroupID))
		if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("consumer stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("consumer shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown error", zap.Error(err))
	}

	<-done
}
