// Package postgres loads snapshots into the Postgres warehouse.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alainabartfeld/strava-activities/internal/domain"
	"github.com/alainabartfeld/strava-activities/internal/observability"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
)

//go:embed migrations/0001_init.sql
var schemaSQL string

var activityColumns = []string{
	"activity_id",
	"snapshot_id",
	"name",
	"activity_type",
	"sport_type",
	"start_date_local",
	"distance_m",
	"moving_time_s",
	"elevation_gain_m",
	"average_heartrate",
	"loaded_date",
	"payload",
}

// Repository provides Postgres-backed storage for loaded snapshots.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the warehouse tables when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply warehouse schema: %w", err)
	}
	return nil
}

// LoadResult summarises a warehouse load.
type LoadResult struct {
	SnapshotID int64
	Rows       int
	Skipped    int
}

// LoadedSnapshot is a row of the snapshots table.
type LoadedSnapshot struct {
	SnapshotID int64
	FileName   string
	Date       time.Time
	Version    int
	Rows       int
	LoadedAt   time.Time
}

// LoadSnapshot records the snapshot and replaces the activities table with its rows in a
// single transaction. Rows without a numeric id are skipped.
func (r *Repository) LoadSnapshot(ctx context.Context, entry snapshot.Entry, table domain.Table) (result LoadResult, err error) {
	rows, skipped := activityRows(table)

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return LoadResult{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const upsertSnapshot = `INSERT INTO snapshots (file_name, snapshot_date, version, suffixed, path, row_count, loaded_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
        ON CONFLICT (file_name) DO UPDATE SET row_count = EXCLUDED.row_count, path = EXCLUDED.path, loaded_at = NOW()
        RETURNING snapshot_id`

	var snapshotID int64
	if err = tx.QueryRow(ctx, upsertSnapshot,
		snapshotFileName(entry), entry.Version.Date, entry.Version.Seq, entry.Version.Suffixed, entry.Path, len(rows),
	).Scan(&snapshotID); err != nil {
		return LoadResult{}, fmt.Errorf("record snapshot: %w", err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM strava_activities`); err != nil {
		return LoadResult{}, fmt.Errorf("clear activities: %w", err)
	}

	for _, row := range rows {
		row[1] = snapshotID
	}
	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"strava_activities"}, activityColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return LoadResult{}, fmt.Errorf("copy activities: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return LoadResult{}, err
	}

	observability.RecordWarehouseRows(int(copied))
	return LoadResult{SnapshotID: snapshotID, Rows: int(copied), Skipped: skipped}, nil
}

// LatestLoaded returns the most recently loaded snapshot, or nil when none was loaded.
func (r *Repository) LatestLoaded(ctx context.Context) (*LoadedSnapshot, error) {
	const query = `SELECT snapshot_id, file_name, snapshot_date, version, row_count, loaded_at
        FROM snapshots ORDER BY loaded_at DESC, snapshot_id DESC LIMIT 1`

	var s LoadedSnapshot
	err := r.pool.QueryRow(ctx, query).Scan(&s.SnapshotID, &s.FileName, &s.Date, &s.Version, &s.Rows, &s.LoadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// CountActivities returns the number of rows in the activities table.
func (r *Repository) CountActivities(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM strava_activities`).Scan(&n)
	return n, err
}

func snapshotFileName(entry snapshot.Entry) string {
	return filepath.Base(entry.Path)
}

// activityRows converts table rows into COPY rows. Column 1 holds the snapshot id and is
// filled in once it is known.
func activityRows(table domain.Table) ([][]any, int) {
	col := func(name string) int { return table.Column(name) }
	idIdx := col("id")
	nameIdx := col("name")
	typeIdx := col("type")
	sportIdx := col("sport_type")
	startIdx := col("start_date_local")
	distanceIdx := col("distance")
	movingIdx := col("moving_time")
	elevationIdx := col("total_elevation_gain")
	heartrateIdx := col("average_heartrate")
	loadedIdx := col(domain.LoadedDateColumn)

	out := make([][]any, 0, len(table.Rows))
	seen := make(map[int64]bool, len(table.Rows))
	skipped := 0
	for _, row := range table.Rows {
		id, ok := parseInt(cell(row, idIdx))
		if !ok || seen[id] {
			skipped++
			continue
		}
		seen[id] = true

		payload := make(map[string]string, len(table.Columns))
		for i, c := range table.Columns {
			if v := cell(row, i); v != "" {
				payload[c] = v
			}
		}

		out = append(out, []any{
			id,
			int64(0),
			nullString(cell(row, nameIdx)),
			nullString(cell(row, typeIdx)),
			nullString(cell(row, sportIdx)),
			nullTime(cell(row, startIdx)),
			nullFloat(cell(row, distanceIdx)),
			nullFloat(cell(row, movingIdx)),
			nullFloat(cell(row, elevationIdx)),
			nullFloat(cell(row, heartrateIdx)),
			nullTime(cell(row, loadedIdx)),
			payload,
		})
	}
	return out, skipped
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseInt(v string) (int64, bool) {
	id, err := strconv.ParseInt(v, 10, 64)
	return id, err == nil && id != 0
}

func nullString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func nullFloat(v string) *float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func nullTime(v string) *time.Time {
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &ts
}
