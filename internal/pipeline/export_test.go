package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alainabartfeld/strava-activities/internal/config"
	"github.com/alainabartfeld/strava-activities/internal/domain"
	"github.com/alainabartfeld/strava-activities/internal/events"
	"github.com/alainabartfeld/strava-activities/internal/snapshot"
	"github.com/alainabartfeld/strava-activities/internal/strava"
)

var clock = func() time.Time { return time.Date(2025, time.January, 2, 6, 30, 0, 0, time.Local) }

func stravaStub(t *testing.T, failPage int) (*httptest.Server, *int32) {
	t.Helper()
	var requests int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type":"Bearer","access_token":"access","expires_in":21600,"refresh_token":"refresh"}`))
	})
	mux.HandleFunc("/athlete/activities", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Header.Get("Authorization") != "Bearer access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == failPage {
			http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
			return
		}
		if page > 3 {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = fmt.Fprintf(w, `[{"id":%d,"type":"Run","distance":%d}]`, page, page*1000)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newExport(srv *httptest.Server, dir string, opts ...Option) *Export {
	creds := config.Credentials{ClientID: "1", ClientSecret: "s", RefreshToken: "refresh"}
	return NewExport(
		strava.NewTokenRefresher(srv.URL+"/oauth/token", creds),
		strava.NewClient(srv.URL+"/athlete/activities"),
		snapshot.NewWriter(dir, snapshot.CSVLayout("strava_export"), snapshot.WithClock(clock)),
		append([]Option{WithClock(clock)}, opts...)...,
	)
}

type fakePublisher struct {
	events []events.SnapshotCreated
	err    error
}

func (p *fakePublisher) PublishSnapshotCreated(_ context.Context, evt events.SnapshotCreated) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func TestExportWritesSnapshotAndPublishes(t *testing.T) {
	srv, requests := stravaStub(t, 0)
	dir := t.TempDir()
	pub := &fakePublisher{}

	res, err := newExport(srv, dir, WithPublisher(pub)).Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 4, atomic.LoadInt32(requests))
	require.Equal(t, 3, res.Activities)
	require.True(t, res.Published)
	require.Equal(t, filepath.Join(dir, "strava_export_2025-01-02.csv"), res.Snapshot.Path)

	table, err := snapshot.ReadTable(res.Snapshot.Path)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "type", "distance", domain.LoadedDateColumn}, table.Columns)
	require.Equal(t, "1", table.Rows[0][0])
	require.Equal(t, "3", table.Rows[2][0])

	require.Len(t, pub.events, 1)
	evt := pub.events[0]
	require.Equal(t, res.RunID, evt.RunID)
	require.Equal(t, "strava_export_2025-01-02.csv", evt.FileName)
	require.Equal(t, "2025-01-02", evt.Date)
	require.Equal(t, 1, evt.Version)
	require.True(t, filepath.IsAbs(evt.Path))
}

func TestExportFetchFailureWritesNothing(t *testing.T) {
	srv, requests := stravaStub(t, 2)
	dir := t.TempDir()
	pub := &fakePublisher{}

	_, err := newExport(srv, dir, WithPublisher(pub)).Run(context.Background())
	var fetchErr *strava.FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, 2, fetchErr.Page)
	require.EqualValues(t, 2, atomic.LoadInt32(requests))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, files)
	require.Empty(t, pub.events)

	_, ok, err := snapshot.NewResolver(dir, snapshot.CSVLayout("strava_export")).Latest(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExportPublishFailureKeepsSnapshot(t *testing.T) {
	srv, _ := stravaStub(t, 0)
	dir := t.TempDir()
	core, logs := observer.New(zapcore.WarnLevel)

	res, err := newExport(srv, dir,
		WithPublisher(&fakePublisher{err: errors.New("kafka down")}),
		WithLogger(zap.New(core)),
	).Run(context.Background())
	require.NoError(t, err)
	require.False(t, res.Published)
	require.FileExists(t, res.Snapshot.Path)
	require.Equal(t, 1, logs.FilterMessage("snapshot event not published").Len())
}

func TestExportTokenFailureStopsBeforeFetch(t *testing.T) {
	var fetched int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Authorization Error"}`))
			return
		}
		atomic.AddInt32(&fetched, 1)
	}))
	defer srv.Close()

	_, err := newExport(srv, t.TempDir()).Run(context.Background())
	var authErr *strava.AuthenticationError
	require.True(t, errors.As(err, &authErr))
	require.Contains(t, authErr.Body, "Authorization Error")
	require.Zero(t, atomic.LoadInt32(&fetched))
}

func TestExportMissingDirectoryIsWriteError(t *testing.T) {
	srv, _ := stravaStub(t, 0)
	_, err := newExport(srv, filepath.Join(t.TempDir(), "missing")).Run(context.Background())
	var writeErr *snapshot.WriteError
	require.True(t, errors.As(err, &writeErr))
}
