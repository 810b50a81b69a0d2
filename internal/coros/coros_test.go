package coros

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tormoder/fit"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alainabartfeld/strava-activities/internal/domain"
)

var start = time.Date(2025, time.March, 14, 7, 0, 0, 0, time.UTC)

// encodeActivity builds an activity file with one record per heart rate sample, one second
// and ten metres apart.
func encodeActivity(t *testing.T, heartRates ...uint8) []byte {
	t.Helper()

	file, err := fit.NewFile(fit.FileTypeActivity, fit.NewHeader(fit.V20, true))
	require.NoError(t, err)
	activity, err := file.Activity()
	require.NoError(t, err)

	for i, hr := range heartRates {
		rec := fit.NewRecordMsg()
		rec.Timestamp = start.Add(time.Duration(i) * time.Second)
		rec.HeartRate = hr
		rec.Distance = uint32(i) * 1000
		activity.Records = append(activity.Records, rec)
	}

	var buf bytes.Buffer
	require.NoError(t, fit.Encode(&buf, file, binary.LittleEndian))
	return buf.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func cell(t *testing.T, table domain.Table, row int, column string) string {
	t.Helper()
	idx := table.Column(column)
	require.GreaterOrEqual(t, idx, 0, "missing column %s", column)
	return table.Rows[row][idx]
}

func TestDecodeRecordsRendersValidFields(t *testing.T) {
	rows, err := DecodeRecords(bytes.NewReader(encodeActivity(t, 141, 152)), "run.fit")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	ts, ok := first.Get("timestamp")
	require.True(t, ok)
	require.Equal(t, "2025-03-14T07:00:00Z", ts)
	hr, _ := first.Get("heart_rate")
	require.Equal(t, "141", hr)
	source, _ := first.Get(SourceFileColumn)
	require.Equal(t, "run.fit", source)

	dist, ok := rows[1].Get("distance")
	require.True(t, ok)
	require.Equal(t, "10", dist)

	_, ok = first.Get("power")
	require.False(t, ok, "invalid fields are left out")
	_, ok = first.Get("position_lat")
	require.False(t, ok)
}

func TestDecodeRecordsRejectsGarbage(t *testing.T) {
	_, err := DecodeRecords(bytes.NewReader([]byte("definitely not a fit file")), "broken.fit")
	require.Error(t, err)
}

func TestConvertDirCountsUndecodableFilesAsSkipped(t *testing.T) {
	dir := t.TempDir()
	good := encodeActivity(t, 120, 130)
	writeFile(t, dir, "b_morning.FIT", good)
	writeFile(t, dir, "a_evening.fit", encodeActivity(t, 99))
	writeFile(t, dir, "c_broken.fit", []byte("corrupt"))
	writeFile(t, dir, "d_truncated.fit", good[:len(good)/2])
	writeFile(t, dir, "notes.txt", []byte("ignored"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.fit"), 0o755))

	core, logs := observer.New(zap.WarnLevel)
	loaded := time.Date(2025, time.March, 15, 8, 30, 0, 0, time.UTC)
	c := NewConverter(WithLogger(zap.New(core)), WithClock(func() time.Time { return loaded }))

	result, err := c.ConvertDir(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 4, result.Files)
	require.Equal(t, 2, result.Skipped)
	require.Equal(t, 3, result.Records)
	require.Equal(t, 2, logs.FilterMessage("skipping fit file").Len())

	table := result.Table
	require.Equal(t, 3, table.Len())
	require.Equal(t, domain.LoadedDateColumn, table.Columns[len(table.Columns)-1])
	require.Equal(t, "a_evening.fit", cell(t, table, 0, SourceFileColumn))
	require.Equal(t, "99", cell(t, table, 0, "heart_rate"))
	require.Equal(t, "b_morning.FIT", cell(t, table, 2, SourceFileColumn))
	require.Equal(t, "130", cell(t, table, 2, "heart_rate"))
	require.Equal(t, "2025-03-15T08:30:00Z", cell(t, table, 1, domain.LoadedDateColumn))
}

func TestConvertDirEmptyDirectory(t *testing.T) {
	result, err := NewConverter().ConvertDir(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.Zero(t, result.Files)
	require.Zero(t, result.Records)
	require.Equal(t, []string{domain.LoadedDateColumn}, result.Table.Columns)
}

func TestConvertDirMissingDirectory(t *testing.T) {
	_, err := NewConverter().ConvertDir(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestConvertDirHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "run.fit", encodeActivity(t, 120))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewConverter().ConvertDir(ctx, dir)
	require.ErrorIs(t, err, context.Canceled)
}
