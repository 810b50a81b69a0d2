// Package logging configures the process-wide zap logger.
package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alainabartfeld/strava-activities/internal/snapshot"
)

// ErrAlreadyInitialized is returned when Init is called more than once in a process.
var ErrAlreadyInitialized = errors.New("logging already initialized")

// Options controls the sinks of the process logger.
type Options struct {
	Level string
	// ToFile adds a JSON sink in Dir named <Prefix>_<YYYY-MM-DD>[_N].log.
	ToFile bool
	Dir    string
	Prefix string
	Now    func() time.Time
	// Console overrides the console sink, stderr by default.
	Console zapcore.WriteSyncer
}

var (
	mu          sync.Mutex
	initialized bool
)

// Init builds the process logger, installs it as the zap global and returns it together with
// a function that flushes and closes the sinks. It may only be called once.
func Init(opts Options) (*zap.Logger, func(), error) {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return nil, nil, ErrAlreadyInitialized
	}

	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	console := opts.Console
	if console == nil {
		console = zapcore.Lock(os.Stderr)
	}
	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), console, level),
	}

	closeFile := func() {}
	if opts.ToFile {
		now := opts.Now
		if now == nil {
			now = time.Now
		}
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, _, err := snapshot.CreateNext(opts.Dir, snapshot.LogLayout(opts.Prefix), now())
		if err != nil {
			return nil, nil, fmt.Errorf("create log file: %w", err)
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(f), level))
		closeFile = func() { _ = f.Close() }
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	zap.ReplaceGlobals(logger)
	initialized = true

	if opts.ToFile {
		logger.Debug("log file opened", zap.String("dir", opts.Dir))
	}
	return logger, func() {
		_ = logger.Sync()
		closeFile()
	}, nil
}

// FromContext returns the global logger decorated with the trace and span ids found in ctx.
func FromContext(ctx context.Context) *zap.Logger {
	logger := zap.L()
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func parseLevel(raw string) (zapcore.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(raw)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("parse log level %q: %w", raw, err)
	}
	return level, nil
}

// reset allows tests to call Init again.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	initialized = false
}
