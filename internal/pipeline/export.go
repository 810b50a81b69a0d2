// Package pipeline wires the token refresher, activity exporter and snapshot writer into one
// export run.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/alainabartfeld/strava-activities/internal/domain"
	"github.com/alainabartfeld/strava-activities/internal/events"
	"github.com/alainabartfeld/strava-activities/internal/observability"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
	"github.com/alainabartfeld/strava-activities/internal/strava"
)

// Stage names label export failures in metrics and logs.
const (
	StageToken   = "token"
	StageFetch   = "fetch"
	StageWrite   = "write"
	StagePublish = "publish"
)

// TokenSource yields a fresh access token per run.
type TokenSource interface {
	Refresh(ctx context.Context) (strava.Token, error)
}

// ActivityExporter downloads the complete activity history.
type ActivityExporter interface {
	ExportAll(ctx context.Context, accessToken string) ([]domain.Activity, error)
}

// SnapshotWriter persists a table as the next snapshot of the day.
type SnapshotWriter interface {
	Write(ctx context.Context, table domain.Table) (snapshot.Entry, error)
}

// EventPublisher announces new snapshots.
type EventPublisher interface {
	PublishSnapshotCreated(ctx context.Context, evt events.SnapshotCreated) error
}

// Option configures an Export.
type Option func(*Export)

// WithLogger overrides the run logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Export) {
		e.logger = logger
	}
}

// WithPublisher enables snapshot.created events after a successful write.
func WithPublisher(publisher EventPublisher) Option {
	return func(e *Export) {
		e.publisher = publisher
	}
}

// WithClock overrides the clock used for loaded_date.
func WithClock(now func() time.Time) Option {
	return func(e *Export) {
		e.now = now
	}
}

// Export runs token refresh, full download and snapshot write in sequence.
type Export struct {
	tokens    TokenSource
	exporter  ActivityExporter
	writer    SnapshotWriter
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewExport constructs an Export.
func NewExport(tokens TokenSource, exporter ActivityExporter, writer SnapshotWriter, opts ...Option) *Export {
	e := &Export{
		tokens:   tokens,
		exporter: exporter,
		writer:   writer,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result summarises a successful run.
type Result struct {
	RunID      string
	Snapshot   snapshot.Entry
	Activities int
	Columns    int
	Elapsed    time.Duration
	Published  bool
}

// Run executes one export. Nothing is written unless every page was fetched; a publish
// failure is logged and does not fail the run because the snapshot is already on disk.
func (e *Export) Run(ctx context.Context) (Result, error) {
	runID := uuid.NewString()
	logger := e.logger.With(zap.String("run_id", runID))
	start := time.Now()

	ctx, span := observability.Tracer("pipeline").Start(ctx, "pipeline.export")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", runID))

	fail := func(stage string, err error) (Result, error) {
		observability.RecordExportFailure(stage)
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		logger.Error("export failed", zap.String("stage", stage), zap.Error(err))
		return Result{RunID: runID}, err
	}

	logger.Info("strava export started")
	token, err := e.tokens.Refresh(ctx)
	if err != nil {
		return fail(StageToken, err)
	}

	activities, err := e.exporter.ExportAll(ctx, token.AccessToken)
	if err != nil {
		return fail(StageFetch, err)
	}

	table := domain.NewTable(activities, e.now())
	entry, err := e.writer.Write(ctx, table)
	if err != nil {
		return fail(StageWrite, err)
	}

	res := Result{
		RunID:      runID,
		Snapshot:   entry,
		Activities: table.Len(),
		Columns:    len(table.Columns),
		Elapsed:    time.Since(start),
	}
	observability.RecordExportSucceeded(res.Activities, res.Elapsed)
	logger.Info("snapshot deposited",
		zap.String("path", entry.Path),
		zap.Int("activities", res.Activities),
		zap.Duration("elapsed", res.Elapsed),
	)

	if e.publisher != nil {
		if err := e.publisher.PublishSnapshotCreated(ctx, e.event(runID, entry, table)); err != nil {
			observability.RecordExportFailure(StagePublish)
			logger.Warn("snapshot event not published", zap.Error(err))
		} else {
			res.Published = true
		}
	}

	logger.Info("strava export completed")
	return res, nil
}

func (e *Export) event(runID string, entry snapshot.Entry, table domain.Table) events.SnapshotCreated {
	path := entry.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return events.SnapshotCreated{
		EventID:   uuid.NewString(),
		RunID:     runID,
		FileName:  filepath.Base(entry.Path),
		Path:      path,
		Date:      entry.Version.DateString(),
		Version:   entry.Version.Seq,
		Rows:      table.Len(),
		Columns:   len(table.Columns),
		CreatedAt: e.now().UTC(),
	}
}
