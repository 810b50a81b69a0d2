package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/alainabartfeld/strava-activities/internal/domain"
	"github.com/alainabartfeld/strava-activities/internal/events"
	"github.com/alainabartfeld/strava-activities/internal/persistence/postgres"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
)

// SnapshotLoader writes a snapshot table into the warehouse.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, entry snapshot.Entry, table domain.Table) (postgres.LoadResult, error)
}

// WarehouseHandler loads the snapshot named by each snapshot.created event.
type WarehouseHandler struct {
	loader  SnapshotLoader
	dataDir string
	layout  snapshot.Layout
	logger  *zap.Logger
}

// NewWarehouseHandler constructs a handler that resolves snapshot files under dataDir.
func NewWarehouseHandler(loader SnapshotLoader, dataDir string, layout snapshot.Layout, logger *zap.Logger) *WarehouseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WarehouseHandler{loader: loader, dataDir: dataDir, layout: layout, logger: logger}
}

// Handle ignores other event types. The event's file name is resolved against the local data
// directory, since the publishing host's absolute path need not exist here.
func (h *WarehouseHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.EventTypeSnapshotCreated {
		h.logger.Debug("ignoring event", zap.String("event_type", msg.EventType))
		return nil
	}

	var evt events.SnapshotCreated
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return fmt.Errorf("decode snapshot event: %w", err)
	}

	name := filepath.Base(evt.FileName)
	version, err := h.layout.Parse(name)
	if err != nil {
		return err
	}
	entry := snapshot.Entry{Version: version, Path: filepath.Join(h.dataDir, name)}

	table, err := snapshot.ReadTable(entry.Path)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", name, err)
	}

	result, err := h.loader.LoadSnapshot(ctx, entry, table)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", name, err)
	}

	recordSnapshotLoaded(version)
	h.logger.Info("snapshot loaded into warehouse",
		zap.String("file", name),
		zap.String("run_id", evt.RunID),
		zap.Int("rows", result.Rows),
		zap.Int("skipped", result.Skipped),
	)
	return nil
}
