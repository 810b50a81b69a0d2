package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alainabartfeld/strava-activities/internal/domain"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
)

type fixture struct {
	id        int
	typ       string
	start     string
	meters    float64
	moving    int
	elevation float64
	heartrate string
}

var fixtures = []fixture{
	{1, "Run", "2025-01-06T07:00:00Z", 1609.34 * 3, 1800, 30.48, "150"},
	{2, "Run", "2025-01-07T07:00:00Z", 1609.34 * 5, 3000, 60.96, "120"},
	{3, "Run", "2025-01-08T07:00:00Z", 1609.34 * 2, 1200, 0, "170"},
	{4, "Ride", "2025-01-09T07:00:00Z", 1609.34 * 20, 3600, 100, ""},
	{5, "Run", "2025-02-10T07:00:00Z", 1609.34 * 10, 6000, 91.44, "185"},
	{6, "Walk", "2025-02-11T07:00:00Z", 0, 600, 0, ""},
	{7, "Run", "2024-05-01T07:00:00Z", 1609.34 * 4, 2400, 30.48, "140"},
	{8, "Run", "2024-05-02T07:00:00Z", 1609.34 * 6, 3600, 30.48, ""},
}

func fixtureTable() domain.Table {
	activities := make([]domain.Activity, 0, len(fixtures))
	for _, f := range fixtures {
		activities = append(activities, domain.Activity{Fields: []domain.Field{
			{Name: "id", Value: fmt.Sprint(f.id)},
			{Name: "name", Value: fmt.Sprintf("Activity %d", f.id)},
			{Name: "type", Value: f.typ},
			{Name: "sport_type", Value: f.typ},
			{Name: "start_date_local", Value: f.start},
			{Name: "distance", Value: fmt.Sprint(f.meters)},
			{Name: "moving_time", Value: fmt.Sprint(f.moving)},
			{Name: "elapsed_time", Value: fmt.Sprint(f.moving + 60)},
			{Name: "total_elevation_gain", Value: fmt.Sprint(f.elevation)},
			{Name: "average_heartrate", Value: f.heartrate},
			{Name: "map", Value: `{"id":"a1","summary_polyline":""}`},
		}})
	}
	return domain.NewTable(activities, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
}

func loadFixture(t *testing.T) *Engine {
	t.Helper()
	e, err := Load(context.Background(), fixtureTable())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func run(t *testing.T, e *Engine, name string) Result {
	t.Helper()
	res, err := e.Run(context.Background(), name, 2025)
	require.NoError(t, err)
	return res
}

func TestMonthlyRunMilesWithGrandTotal(t *testing.T) {
	res := run(t, loadFixture(t), "monthly_run_miles")
	require.Equal(t, []string{"month", "total_miles"}, res.Columns)
	require.Equal(t, [][]any{
		{"2025-01", 10.0},
		{"2025-02", 10.0},
		{"Grand total", 20.0},
	}, res.Rows)
}

func TestMilesAndCountsByType(t *testing.T) {
	e := loadFixture(t)

	miles := run(t, e, "miles_by_type")
	require.Equal(t, [][]any{{"Ride", 20.0}, {"Run", 20.0}}, miles.Rows)

	counts := run(t, e, "activities_by_type")
	require.Equal(t, [][]any{{"Run", int64(4)}, {"Ride", int64(1)}, {"Walk", int64(1)}}, counts.Rows)

	runs := run(t, e, "run_count")
	require.Equal(t, [][]any{{int64(4)}}, runs.Rows)
}

func TestElevationAndTime(t *testing.T) {
	e := loadFixture(t)

	elevation := run(t, e, "run_elevation")
	require.Equal(t, []string{"total_elevation_feet", "max_single_run_feet"}, elevation.Columns)
	require.InDelta(t, 600.0, elevation.Rows[0][0], 0.01)
	require.InDelta(t, 300.0, elevation.Rows[0][1], 0.01)

	timeRes := run(t, e, "run_time")
	require.InDelta(t, 3.33, timeRes.Rows[0][0], 0.01)
}

func TestYearOverYear(t *testing.T) {
	res := run(t, loadFixture(t), "year_over_year")
	require.Equal(t, []string{"metric", "current_year", "previous_year", "pct_change"}, res.Columns)
	require.Len(t, res.Rows, 4)

	require.Equal(t, "runs", res.Rows[0][0])
	require.EqualValues(t, 4, res.Rows[0][1])
	require.EqualValues(t, 2, res.Rows[0][2])
	require.InDelta(t, 100.0, res.Rows[0][3], 0.001)

	require.Equal(t, "miles", res.Rows[1][0])
	require.InDelta(t, 20.0, res.Rows[1][1], 0.001)
	require.InDelta(t, 10.0, res.Rows[1][2], 0.001)
}

func TestLongestRunStreak(t *testing.T) {
	res := run(t, loadFixture(t), "longest_run_streak")
	require.Equal(t, [][]any{{"2025-01-06", "2025-01-08", int64(3)}}, res.Rows)
}

func TestWeeklyAndCumulativeMiles(t *testing.T) {
	e := loadFixture(t)

	weekly := run(t, e, "weekly_run_miles")
	require.Equal(t, [][]any{
		{"2025-01-12", 10.0},
		{"2025-02-16", 10.0},
	}, weekly.Rows)

	cumulative := run(t, e, "cumulative_run_miles")
	require.Len(t, cumulative.Rows, 4)
	require.Equal(t, 20.0, cumulative.Rows[3][3])
}

func TestHeartRateZones(t *testing.T) {
	res := run(t, loadFixture(t), "hr_zones")
	require.Len(t, res.Rows, 5)

	counts := make([]int64, 0, 5)
	for _, row := range res.Rows {
		counts = append(counts, row[3].(int64))
	}
	require.Equal(t, []int64{1, 0, 1, 1, 1}, counts)
	require.Equal(t, "Zone 1", res.Rows[0][0])
	require.InDelta(t, 25.0, res.Rows[0][4], 0.001)
	require.InDelta(t, 10.0, res.Rows[0][5], 0.001)
}

func TestRunAllAndUnknownReport(t *testing.T) {
	e := loadFixture(t)
	results, err := e.RunAll(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, results, len(Definitions()))

	_, err = e.Run(context.Background(), "nope", 2025)
	require.True(t, errors.Is(err, ErrUnknownReport))
}

func TestMissingKnownColumnsAreNull(t *testing.T) {
	table := domain.NewTable([]domain.Activity{
		{Fields: []domain.Field{{Name: "id", Value: "1"}, {Name: "type", Value: "Run"}}},
	}, time.Now())
	e, err := Load(context.Background(), table)
	require.NoError(t, err)
	defer e.Close()

	res, err := e.Run(context.Background(), "run_count", 2025)
	require.NoError(t, err)
	require.Equal(t, [][]any{{int64(0)}}, res.Rows)
}

func TestListActivitiesPaginatesNewestFirst(t *testing.T) {
	e := loadFixture(t)

	page, next, err := e.ListActivities(context.Background(), ActivityFilter{Type: "Run", Limit: 4})
	require.NoError(t, err)
	require.Len(t, page, 4)
	require.EqualValues(t, 5, page[0].ID)
	require.EqualValues(t, 1, page[3].ID)
	require.NotNil(t, next)
	require.InDelta(t, 10.0, page[0].DistanceMiles, 0.001)
	require.NotNil(t, page[0].AverageHeartrate)

	rest, next, err := e.ListActivities(context.Background(), ActivityFilter{Type: "Run", Limit: 4, Cursor: next})
	require.NoError(t, err)
	require.Nil(t, next)
	require.Len(t, rest, 2)
	require.EqualValues(t, 8, rest[0].ID)
	require.EqualValues(t, 7, rest[1].ID)
	require.Nil(t, rest[0].AverageHeartrate)
}

func TestRenderTableAndJSON(t *testing.T) {
	results := []Result{{
		Name: "run_count", Title: "How many runs did I do?", Year: 2025,
		Columns: []string{"total_runs"}, Rows: [][]any{{int64(4)}},
	}}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, results, FormatTable))
	require.Contains(t, buf.String(), "How many runs did I do? (2025)")
	require.Contains(t, buf.String(), "total_runs")

	buf.Reset()
	require.NoError(t, Render(&buf, results, FormatJSON))
	var decoded []Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "run_count", decoded[0].Name)

	require.Error(t, Render(&buf, results, "xml"))
}

type stubResolver struct {
	entry snapshot.Entry
	ok    bool
}

func (s *stubResolver) Latest(context.Context) (snapshot.Entry, bool, error) {
	return s.entry, s.ok, nil
}

func TestServiceReloadsOnNewerSnapshot(t *testing.T) {
	dir := t.TempDir()
	clock := func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.Local) }
	writer := snapshot.NewWriter(dir, snapshot.CSVLayout("strava_export"), snapshot.WithClock(clock))
	resolver := snapshot.NewResolver(dir, snapshot.CSVLayout("strava_export"))

	svc := NewService(resolver)
	defer svc.Close()

	_, err := svc.Latest(context.Background())
	require.True(t, errors.Is(err, snapshot.ErrNoSnapshot))

	first, err := writer.Write(context.Background(), fixtureTable())
	require.NoError(t, err)
	res, err := svc.Run(context.Background(), "run_count", 2025)
	require.NoError(t, err)
	require.Equal(t, [][]any{{int64(4)}}, res.Rows)

	smaller := domain.NewTable([]domain.Activity{
		{Fields: []domain.Field{{Name: "id", Value: "9"}, {Name: "type", Value: "Run"}, {Name: "start_date_local", Value: "2025-02-01T07:00:00Z"}}},
	}, clock())
	second, err := writer.Write(context.Background(), smaller)
	require.NoError(t, err)
	require.NotEqual(t, first.Path, second.Path)

	latest, err := svc.Latest(context.Background())
	require.NoError(t, err)
	require.Equal(t, second.Path, latest.Path)

	res, err = svc.Run(context.Background(), "run_count", 2025)
	require.NoError(t, err)
	require.Equal(t, [][]any{{int64(1)}}, res.Rows)
}

func TestServiceNoSnapshot(t *testing.T) {
	svc := NewService(&stubResolver{})
	_, err := svc.RunAll(context.Background(), 2025)
	require.True(t, errors.Is(err, snapshot.ErrNoSnapshot))

	missing := NewService(&stubResolver{ok: true, entry: snapshot.Entry{Path: filepath.Join(t.TempDir(), "gone.csv")}})
	_, err = missing.RunAll(context.Background(), 2025)
	require.True(t, errors.Is(err, os.ErrNotExist))
}
