package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alainabartfeld/strava-activities/internal/auth"
	"github.com/alainabartfeld/strava-activities/internal/domain"
	"github.com/alainabartfeld/strava-activities/internal/persistence"
	"github.com/alainabartfeld/strava-activities/internal/report"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
)

var authConfig = auth.Config{Secret: "secret", Issuer: "strava-activities"}

func newServer(t *testing.T, svc ReportService) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(svc, WithClock(func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) })).RegisterRoutes(mux)
	return auth.NewMiddleware(authConfig).Wrap(mux)
}

func get(t *testing.T, h http.Handler, target string, scopes ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if scopes != nil {
		token, err := auth.Issue(authConfig, "athlete", scopes, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func seedSnapshot(t *testing.T) *report.Service {
	t.Helper()
	dir := t.TempDir()
	var activities []domain.Activity
	for i, start := range []string{"2025-01-01T07:00:00Z", "2025-01-02T07:00:00Z", "2025-01-03T07:00:00Z"} {
		activities = append(activities, domain.Activity{Fields: []domain.Field{
			{Name: "id", Value: strconv.Itoa(i + 1)},
			{Name: "name", Value: "Morning Run"},
			{Name: "type", Value: "Run"},
			{Name: "sport_type", Value: "Run"},
			{Name: "start_date_local", Value: start},
			{Name: "distance", Value: "1609.34"},
			{Name: "moving_time", Value: "600"},
		}})
	}
	clock := func() time.Time { return time.Date(2025, 1, 4, 9, 0, 0, 0, time.Local) }
	_, err := snapshot.NewWriter(dir, snapshot.CSVLayout("strava_export"), snapshot.WithClock(clock)).
		Write(context.Background(), domain.NewTable(activities, clock()))
	require.NoError(t, err)

	svc := report.NewService(snapshot.NewResolver(dir, snapshot.CSVLayout("strava_export")))
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestHealthzIsOpen(t *testing.T) {
	rec := get(t, newServer(t, seedSnapshot(t)), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestScopeIsRequired(t *testing.T) {
	h := newServer(t, seedSnapshot(t))
	require.Equal(t, http.StatusUnauthorized, get(t, h, "/v1/reports").Code)
	require.Equal(t, http.StatusForbidden, get(t, h, "/v1/reports", "activities:write").Code)
	require.Equal(t, http.StatusOK, get(t, h, "/v1/reports", auth.ScopeReportsRead).Code)
}

func TestLatestSnapshot(t *testing.T) {
	rec := get(t, newServer(t, seedSnapshot(t)), "/v1/snapshots/latest", auth.ScopeReportsRead)
	require.Equal(t, http.StatusOK, rec.Code)

	var view SnapshotView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "strava_export_2025-01-04.csv", view.FileName)
	require.Equal(t, "2025-01-04", view.Date)
	require.Equal(t, 1, view.Version)
}

func TestLatestSnapshotMissing(t *testing.T) {
	svc := report.NewService(snapshot.NewResolver(t.TempDir(), snapshot.CSVLayout("strava_export")))
	rec := get(t, newServer(t, svc), "/v1/snapshots/latest", auth.ScopeReportsRead)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "no_snapshot")
}

func TestReportByName(t *testing.T) {
	h := newServer(t, seedSnapshot(t))

	rec := get(t, h, "/v1/reports/run_count?year=2025", auth.ScopeReportsRead)
	require.Equal(t, http.StatusOK, rec.Code)
	var res report.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "run_count", res.Name)
	require.Equal(t, 2025, res.Year)
	require.Equal(t, []any{float64(3)}, res.Rows[0])

	rec = get(t, h, "/v1/reports/run_count", auth.ScopeReportsRead)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusNotFound, get(t, h, "/v1/reports/bogus", auth.ScopeReportsRead).Code)
	require.Equal(t, http.StatusBadRequest, get(t, h, "/v1/reports/run_count?year=abc", auth.ScopeReportsRead).Code)
	require.Equal(t, http.StatusBadRequest, get(t, h, "/v1/reports/", auth.ScopeReportsRead).Code)
}

func TestListActivitiesPagination(t *testing.T) {
	h := newServer(t, seedSnapshot(t))

	rec := get(t, h, "/v1/activities?limit=2&type=Run", auth.ScopeReportsRead)
	require.Equal(t, http.StatusOK, rec.Code)
	var first ListActivitiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Len(t, first.Items, 2)
	require.EqualValues(t, 3, first.Items[0].ID)
	require.NotEmpty(t, first.NextCursor)

	rec = get(t, h, "/v1/activities?limit=2&type=Run&cursor="+first.NextCursor, auth.ScopeReportsRead)
	require.Equal(t, http.StatusOK, rec.Code)
	var second ListActivitiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.Len(t, second.Items, 1)
	require.EqualValues(t, 1, second.Items[0].ID)
	require.Empty(t, second.NextCursor)

	cursor := persistence.EncodeCursor(&domain.Cursor{StartedAt: time.Date(2025, 1, 2, 7, 0, 0, 0, time.UTC), ID: 2})
	rec = get(t, h, "/v1/activities?cursor="+cursor, auth.ScopeReportsRead)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusBadRequest, get(t, h, "/v1/activities?cursor=%25%25", auth.ScopeReportsRead).Code)
}

func TestMethodNotAllowed(t *testing.T) {
	token, err := auth.Issue(authConfig, "athlete", []string{auth.ScopeReportsRead}, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/reports", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newServer(t, seedSnapshot(t)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
