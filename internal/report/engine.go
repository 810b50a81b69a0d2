// Package report loads a snapshot into an in-memory SQLite database and runs the fixed
// battery of year-in-sport queries against it.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"

	"github.com/alainabartfeld/strava-activities/internal/domain"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
)

// Unit conversions applied by the staging view.
const (
	MetersPerMile = 1609.34
	MetersPerFoot = 0.3048
)

type columnKind int

const (
	kindText columnKind = iota
	kindInteger
	kindReal
)

func (k columnKind) sqlType() string {
	switch k {
	case kindInteger:
		return "INTEGER"
	case kindReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

// knownColumns are the upstream fields the staging view reads. Any of them missing from a
// snapshot is created as an all-NULL column so the view always compiles.
var knownColumns = map[string]columnKind{
	"id":                   kindInteger,
	"name":                 kindText,
	"type":                 kindText,
	"sport_type":           kindText,
	"workout_type":         kindInteger,
	"device_name":          kindText,
	"start_date":           kindText,
	"start_date_local":     kindText,
	"timezone":             kindText,
	"distance":             kindReal,
	"moving_time":          kindReal,
	"elapsed_time":         kindReal,
	"total_elevation_gain": kindReal,
	"elev_high":            kindReal,
	"elev_low":             kindReal,
	"average_speed":        kindReal,
	"max_speed":            kindReal,
	"average_cadence":      kindReal,
	"average_watts":        kindReal,
	"max_watts":            kindReal,
	"kilojoules":           kindReal,
	"has_heartrate":        kindText,
	"average_heartrate":    kindReal,
	"max_heartrate":        kindReal,
	"kudos_count":          kindInteger,
	"achievement_count":    kindInteger,
	"pr_count":             kindInteger,
	"loaded_date":          kindText,
}

var stagingView = fmt.Sprintf(`CREATE VIEW staging AS
SELECT
    id
    ,name
    ,type
    ,sport_type
    ,workout_type
    ,device_name
    ,start_date AS start_date_utc
    ,start_date_local
    ,timezone
    ,substr(start_date_local, 1, 10) AS start_day
    ,CAST(substr(start_date_local, 1, 4) AS INTEGER) AS start_year
    ,substr(start_date_local, 1, 7) AS start_date_local_yyyy_mm
    ,distance AS distance_meters
    ,moving_time AS moving_time_secs
    ,elapsed_time AS elapsed_time_secs
    ,elev_high AS elev_high_meters
    ,elev_low AS elev_low_meters
    ,total_elevation_gain AS total_elevation_gain_meters
    ,round(distance / %[1]g, 2) AS distance_miles
    ,round(moving_time / 60.0, 2) AS moving_time_mins
    ,round(moving_time / 3600.0, 2) AS moving_time_hrs
    ,round(elapsed_time / 60.0, 2) AS elapsed_time_mins
    ,round(elapsed_time / 3600.0, 2) AS elapsed_time_hrs
    ,round(total_elevation_gain / %[2]g, 2) AS total_elevation_gain_feet
    ,round(elev_high / %[2]g, 2) AS elev_high_feet
    ,round(elev_low / %[2]g, 2) AS elev_low_feet
    ,CASE WHEN distance > 0 THEN round((moving_time / 60.0) / (distance / %[1]g), 2) END AS average_pace_mins_per_mile
    ,average_speed
    ,max_speed
    ,average_cadence
    ,average_watts
    ,max_watts
    ,kilojoules
    ,has_heartrate
    ,average_heartrate
    ,max_heartrate
    ,kudos_count
    ,achievement_count
    ,pr_count
    ,loaded_date
FROM raw_activities`, MetersPerMile, MetersPerFoot)

// Option configures an Engine or Service.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Engine is an in-memory analytical database holding one snapshot.
type Engine struct {
	db       *sql.DB
	snapshot snapshot.Entry
	rows     int
	logger   *zap.Logger
}

// Open reads the snapshot file and loads it into a fresh engine.
func Open(ctx context.Context, entry snapshot.Entry, opts ...Option) (*Engine, error) {
	table, err := snapshot.ReadTable(entry.Path)
	if err != nil {
		return nil, err
	}
	e, err := Load(ctx, table, opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", entry.Path, err)
	}
	e.snapshot = entry
	e.logger.Info("snapshot loaded into query engine", zap.String("path", entry.Path), zap.Int("rows", e.rows))
	return e, nil
}

// Load builds an engine from an in-memory table.
func Load(ctx context.Context, table domain.Table, opts ...Option) (*Engine, error) {
	o := buildOptions(opts)

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Each :memory: connection is its own database.
	db.SetMaxOpenConns(1)

	e := &Engine{db: db, logger: o.logger}
	if err := e.load(ctx, table); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) load(ctx context.Context, table domain.Table) error {
	columns := append([]string(nil), table.Columns...)
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	for name := range knownColumns {
		if !present[name] {
			columns = append(columns, name)
		}
	}

	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c) + " " + knownColumns[c].sqlType()
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE raw_activities ("+strings.Join(defs, ", ")+")"); err != nil {
		return fmt.Errorf("create raw_activities: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(table.Columns)), ", ")
	quoted := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		quoted[i] = quoteIdent(c)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO raw_activities (%s) VALUES (%s)",
		strings.Join(quoted, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(table.Columns))
	for _, row := range table.Rows {
		for i, c := range table.Columns {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			args[i] = typedValue(knownColumns[c], cell)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, stagingView); err != nil {
		return fmt.Errorf("create staging view: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.rows = len(table.Rows)
	return nil
}

// Snapshot returns the snapshot the engine was loaded from.
func (e *Engine) Snapshot() snapshot.Entry { return e.snapshot }

// Rows returns the number of loaded activities.
func (e *Engine) Rows() int { return e.rows }

// Close releases the database.
func (e *Engine) Close() error { return e.db.Close() }

// typedValue converts CSV cell text for binding. Empty cells are NULL, as are numbers that do
// not parse.
func typedValue(kind columnKind, cell string) any {
	if cell == "" {
		return nil
	}
	switch kind {
	case kindInteger:
		if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return v
		}
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			return int64(v)
		}
		return nil
	case kindReal:
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			return v
		}
		return nil
	default:
		return cell
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
