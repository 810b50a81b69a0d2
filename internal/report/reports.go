package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/alainabartfeld/strava-activities/internal/observability"
)

// ErrUnknownReport is returned for a report name outside the battery.
var ErrUnknownReport = errors.New("unknown report")

// Definition is one canned query. Queries bind the report year as ?1.
type Definition struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	query string
}

// Result is the tabular output of a report.
type Result struct {
	Name    string   `json:"name"`
	Title   string   `json:"title"`
	Year    int      `json:"year"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

var definitions = []Definition{
	{
		Name:  "monthly_run_miles",
		Title: "How many miles did I run?",
		query: `SELECT month, total_miles FROM (
    SELECT start_date_local_yyyy_mm AS month, round(sum(distance_miles), 2) AS total_miles, 0 AS ord
    FROM staging
    WHERE start_year = ?1 AND type = 'Run'
    GROUP BY start_date_local_yyyy_mm
    UNION ALL
    SELECT 'Grand total', round(coalesce(sum(distance_miles), 0), 2), 1
    FROM staging
    WHERE start_year = ?1 AND type = 'Run'
)
ORDER BY ord, month`,
	},
	{
		Name:  "miles_by_type",
		Title: "How many miles of each activity type did I do?",
		query: `SELECT type, round(sum(distance_miles), 2) AS total_miles
FROM staging
WHERE start_year = ?1
GROUP BY type
HAVING total_miles > 0
ORDER BY total_miles DESC, type`,
	},
	{
		Name:  "run_count",
		Title: "How many runs did I do?",
		query: `SELECT count(*) AS total_runs
FROM staging
WHERE start_year = ?1 AND type = 'Run'`,
	},
	{
		Name:  "activities_by_type",
		Title: "How many of each activity type did I do?",
		query: `SELECT type, count(*) AS activity_count
FROM staging
WHERE start_year = ?1
GROUP BY type
ORDER BY activity_count DESC, type`,
	},
	{
		Name:  "run_elevation",
		Title: "How much elevation did I run?",
		query: `SELECT round(coalesce(sum(total_elevation_gain_meters), 0) / 0.3048, 2) AS total_elevation_feet,
    round(coalesce(max(total_elevation_gain_feet), 0), 2) AS max_single_run_feet
FROM staging
WHERE start_year = ?1 AND type = 'Run'`,
	},
	{
		Name:  "run_time",
		Title: "How much total time did I run?",
		query: `SELECT round(coalesce(sum(moving_time_secs), 0) / 3600.0, 2) AS moving_time_hrs,
    round(coalesce(sum(elapsed_time_secs), 0) / 3600.0, 2) AS elapsed_time_hrs
FROM staging
WHERE start_year = ?1 AND type = 'Run'`,
	},
	{
		Name:  "year_over_year",
		Title: "How much did these metrics change YoY?",
		query: `WITH totals AS (
    SELECT start_year,
        count(*) AS runs,
        coalesce(sum(distance_meters), 0) / 1609.34 AS miles,
        coalesce(sum(total_elevation_gain_meters), 0) / 0.3048 AS elevation_feet,
        coalesce(sum(moving_time_secs), 0) / 3600.0 AS hours
    FROM staging
    WHERE type = 'Run' AND start_year IN (?1, ?1 - 1)
    GROUP BY start_year
),
cur AS (
    SELECT coalesce(max(runs), 0) AS runs, coalesce(max(miles), 0) AS miles,
        coalesce(max(elevation_feet), 0) AS elevation_feet, coalesce(max(hours), 0) AS hours
    FROM totals WHERE start_year = ?1
),
prev AS (
    SELECT coalesce(max(runs), 0) AS runs, coalesce(max(miles), 0) AS miles,
        coalesce(max(elevation_feet), 0) AS elevation_feet, coalesce(max(hours), 0) AS hours
    FROM totals WHERE start_year = ?1 - 1
)
SELECT 'runs' AS metric, cur.runs AS current_year, prev.runs AS previous_year,
    CASE WHEN prev.runs > 0 THEN round(100.0 * (cur.runs - prev.runs) / prev.runs, 1) END AS pct_change
FROM cur, prev
UNION ALL
SELECT 'miles', round(cur.miles, 2), round(prev.miles, 2),
    CASE WHEN prev.miles > 0 THEN round(100.0 * (cur.miles - prev.miles) / prev.miles, 1) END
FROM cur, prev
UNION ALL
SELECT 'elevation_feet', round(cur.elevation_feet, 2), round(prev.elevation_feet, 2),
    CASE WHEN prev.elevation_feet > 0 THEN round(100.0 * (cur.elevation_feet - prev.elevation_feet) / prev.elevation_feet, 1) END
FROM cur, prev
UNION ALL
SELECT 'hours', round(cur.hours, 2), round(prev.hours, 2),
    CASE WHEN prev.hours > 0 THEN round(100.0 * (cur.hours - prev.hours) / prev.hours, 1) END
FROM cur, prev`,
	},
	{
		Name:  "weekly_run_miles",
		Title: "Weekly mileage",
		query: `SELECT date(start_day, 'weekday 0') AS week_ending, round(sum(distance_miles), 2) AS miles
FROM staging
WHERE start_year = ?1 AND sport_type = 'Run'
GROUP BY week_ending
ORDER BY week_ending`,
	},
	{
		Name:  "cumulative_run_miles",
		Title: "Cumulative running mileage",
		query: `SELECT start_day AS day, name, distance_miles,
    round(sum(distance_miles) OVER (ORDER BY start_date_local, id ROWS UNBOUNDED PRECEDING), 2) AS cumulative_miles
FROM staging
WHERE start_year = ?1 AND sport_type = 'Run'
ORDER BY start_date_local, id`,
	},
	{
		Name:  "monthly_run_pace",
		Title: "Average pace over time",
		query: `SELECT start_date_local_yyyy_mm AS month,
    count(*) AS runs,
    round(avg(average_pace_mins_per_mile), 2) AS avg_pace_mins_per_mile,
    round(min(average_pace_mins_per_mile), 2) AS best_pace_mins_per_mile
FROM staging
WHERE start_year = ?1 AND sport_type = 'Run' AND average_pace_mins_per_mile IS NOT NULL
GROUP BY start_date_local_yyyy_mm
ORDER BY month`,
	},
	{
		Name:  "longest_run_streak",
		Title: "Longest run streak",
		query: `WITH days AS (
    SELECT DISTINCT start_day AS day
    FROM staging
    WHERE start_year = ?1 AND sport_type = 'Run'
),
grouped AS (
    SELECT day, julianday(day) - row_number() OVER (ORDER BY day) AS grp
    FROM days
)
SELECT min(day) AS streak_start, max(day) AS streak_end, count(*) AS days
FROM grouped
GROUP BY grp
ORDER BY days DESC, streak_start
LIMIT 1`,
	},
	{
		Name:  "hr_zones",
		Title: "Average pace by heart rate zone",
		query: `WITH zones(zone, low_bpm, high_bpm, ord) AS (
    VALUES ('Zone 1', 0, 125, 1), ('Zone 2', 126, 145, 2), ('Zone 3', 146, 165, 3),
        ('Zone 4', 166, 180, 4), ('Zone 5', 181, 250, 5)
),
runs AS (
    SELECT id, average_heartrate, average_pace_mins_per_mile
    FROM staging
    WHERE start_year = ?1 AND sport_type = 'Run' AND average_heartrate IS NOT NULL
)
SELECT z.zone, z.low_bpm, z.high_bpm,
    count(r.id) AS run_count,
    coalesce(round(100.0 * count(r.id) / nullif((SELECT count(*) FROM runs), 0), 1), 0) AS share_pct,
    coalesce(round(avg(r.average_pace_mins_per_mile), 2), 0) AS avg_pace,
    coalesce(round(avg(r.average_heartrate), 0), 0) AS avg_hr
FROM zones z
LEFT JOIN runs r ON r.average_heartrate >= z.low_bpm AND r.average_heartrate <= z.high_bpm
GROUP BY z.ord, z.zone, z.low_bpm, z.high_bpm
ORDER BY z.ord`,
	},
}

// Definitions lists the report battery in presentation order.
func Definitions() []Definition {
	return append([]Definition(nil), definitions...)
}

func lookup(name string) (Definition, bool) {
	for _, d := range definitions {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Run executes the named report for a year.
func (e *Engine) Run(ctx context.Context, name string, year int) (Result, error) {
	def, ok := lookup(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownReport, name)
	}

	ctx, span := observability.Tracer("report").Start(ctx, "report.query")
	defer span.End()
	span.SetAttributes(attribute.String("report.name", name), attribute.Int("report.year", year))

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, def.query, year)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return Result{}, fmt.Errorf("report %s: %w", name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}
	res := Result{Name: def.Name, Title: def.Title, Year: year, Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, fmt.Errorf("report %s: %w", name, err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("report %s: %w", name, err)
	}

	observability.ObserveReportQuery(name, time.Since(start))
	return res, nil
}

// RunAll executes every report for a year.
func (e *Engine) RunAll(ctx context.Context, year int) ([]Result, error) {
	results := make([]Result, 0, len(definitions))
	for _, def := range definitions {
		res, err := e.Run(ctx, def.Name, year)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
