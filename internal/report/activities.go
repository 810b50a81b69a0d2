package report

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/alainabartfeld/strava-activities/internal/domain"
)

// MaxListLimit caps a single activities page.
const MaxListLimit = 200

// ActivityFilter selects a page of activities, newest first.
type ActivityFilter struct {
	Type   string
	Limit  int
	Cursor *domain.Cursor
}

// ListActivities returns one page of activities ordered by local start time and id, both
// descending, and the cursor for the next page when more rows remain.
func (e *Engine) ListActivities(ctx context.Context, filter ActivityFilter) ([]domain.ActivitySummary, *domain.Cursor, error) {
	limit := filter.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = 50
	}

	var (
		where []string
		args  []any
	)
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Cursor != nil {
		ts := filter.Cursor.StartedAt.UTC().Format(time.RFC3339)
		where = append(where, "(start_date_local < ? OR (start_date_local = ? AND id < ?))")
		args = append(args, ts, ts, filter.Cursor.ID)
	}

	query := `SELECT id, coalesce(name, ''), coalesce(type, ''), coalesce(sport_type, ''), coalesce(start_date_local, ''),
    coalesce(distance_miles, 0), coalesce(moving_time_mins, 0), coalesce(total_elevation_gain_feet, 0),
    average_heartrate, average_pace_mins_per_mile
FROM staging`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY start_date_local DESC, id DESC\nLIMIT ?"
	args = append(args, limit+1)

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ActivitySummary, 0, limit)
	for rows.Next() {
		var (
			s         domain.ActivitySummary
			id        sql.NullInt64
			started   string
			heartrate sql.NullFloat64
			pace      sql.NullFloat64
		)
		if err := rows.Scan(&id, &s.Name, &s.Type, &s.SportType, &started,
			&s.DistanceMiles, &s.MovingTimeMinutes, &s.ElevationGainFeet, &heartrate, &pace); err != nil {
			return nil, nil, err
		}
		s.ID = id.Int64
		if ts, err := time.Parse(time.RFC3339, started); err == nil {
			s.StartDateLocal = ts
		}
		if heartrate.Valid {
			v := heartrate.Float64
			s.AverageHeartrate = &v
		}
		if pace.Valid {
			v := pace.Float64
			s.PaceMinsPerMile = &v
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(out) > limit {
		out = out[:limit]
		last := out[len(out)-1]
		next = &domain.Cursor{StartedAt: last.StartDateLocal, ID: last.ID}
	}
	return out, next, nil
}
