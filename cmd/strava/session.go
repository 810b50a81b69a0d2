package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/alainabartfeld/strava-activities/internal/config"
	"github.com/alainabartfeld/strava-activities/internal/logging"
	"github.com/alainabartfeld/strava-activities/internal/observability"
)

const serviceName = "strava-cli"

// session holds the process-wide logger and tracer of a single command.
type session struct {
	logger        *zap.Logger
	closeLogs     func()
	shutdownTrace func(context.Context) error
}

// startSession initialises logging and tracing for a command. Log files are named after
// logPrefix and versioned per day like snapshots.
func startSession(ctx context.Context, cfg config.Config, logPrefix string) (*session, error) {
	logger, closeLogs, err := logging.Init(logging.Options{
		Level:  cfg.LogLevel,
		ToFile: cfg.LogToFile,
		Dir:    cfg.Paths().Logs,
		Prefix: logPrefix,
	})
	if err != nil {
		return nil, err
	}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: serviceName,
		UseStdout:   cfg.TracesToStdout,
	})
	if err != nil {
		closeLogs()
		return nil, err
	}
	return &session{logger: logger, closeLogs: closeLogs, shutdownTrace: shutdown}, nil
}

func (r *session) Close(ctx context.Context) {
	if err := r.shutdownTrace(context.WithoutCancel(ctx)); err != nil {
		r.logger.Warn("trace shutdown failed", zap.Error(err))
	}
	r.closeLogs()
}
