package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCredentialsReportsEveryMissingVariable(t *testing.T) {
	t.Setenv(EnvClientID, "123")
	t.Setenv(EnvClientSecret, "")
	t.Setenv(EnvRefreshToken, "  ")

	_, err := Load().Credentials()
	require.Error(t, err)

	var missing *MissingEnvError
	require.True(t, errors.As(err, &missing))
	require.Equal(t, []string{EnvClientSecret, EnvRefreshToken}, missing.Keys)
}

func TestCredentialsPresent(t *testing.T) {
	t.Setenv(EnvClientID, "123")
	t.Setenv(EnvClientSecret, "secret")
	t.Setenv(EnvRefreshToken, "refresh")

	creds, err := Load().Credentials()
	require.NoError(t, err)
	require.Equal(t, Credentials{ClientID: "123", ClientSecret: "secret", RefreshToken: "refresh"}, creds)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BASE_DIR", "/srv/strava")
	t.Setenv("DATA_DIR", "")
	t.Setenv("LOG_DIR", "")
	t.Setenv("COROS_FIT_DIR", "")
	t.Setenv("STRAVA_PAGE_SIZE", "500")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")

	cfg := Load()
	require.Equal(t, filepath.Join("/srv/strava", "data"), cfg.Paths().Data)
	require.Equal(t, filepath.Join("/srv/strava", "logs"), cfg.Paths().Logs)
	require.Equal(t, filepath.Join("/srv/strava", "coros_data"), cfg.Paths().CorosFit)
	require.Equal(t, filepath.Join("/srv/strava", "data", "coros"), cfg.Paths().CorosData)
	require.Equal(t, MaxPageSize, cfg.PageSize)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "strava_export", cfg.SnapshotPrefix)
}

func TestPathsKeepAbsoluteDirectories(t *testing.T) {
	t.Setenv("BASE_DIR", "/srv/strava")
	t.Setenv("DATA_DIR", "/mnt/exports")
	t.Setenv("LOG_DIR", "")

	paths := Load().Paths()
	require.Equal(t, "/mnt/exports", paths.Data)
	require.Equal(t, filepath.Join("/srv/strava", "logs"), paths.Logs)
}

func TestPaths(t *testing.T) {
	p := Paths{Base: "/srv/strava"}
	require.Equal(t, filepath.Join("/srv/strava", "reports"), p.Resolve("reports"))
	require.Equal(t, "/tmp/x", p.Resolve("/tmp/x"))

	day := time.Date(2025, time.March, 9, 12, 0, 0, 0, time.Local)
	require.Equal(t, "2025-03-09", Today(day))
}

func TestCivilDateUsesLocalCalendarDay(t *testing.T) {
	local := time.Date(2025, time.March, 9, 23, 30, 0, 0, time.Local)
	day := CivilDate(local)

	require.Equal(t, time.UTC, day.Location())
	require.Equal(t, time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC), day)
	require.Equal(t, Today(local), day.Format(DateLayout))
}
