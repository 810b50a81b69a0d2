package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRecordSnapshotWrittenSetsGauges(t *testing.T) {
	ts := time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)
	RecordSnapshotWritten(ts, 3)

	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(snapshotWrittenGauge))
	require.Equal(t, float64(3), testutil.ToFloat64(snapshotVersionGauge))
}

func TestRecordEventPublishedLabelsOutcome(t *testing.T) {
	before := testutil.ToFloat64(eventsPublishedCounter.WithLabelValues("snapshots", "error"))
	RecordEventPublished("snapshots", errors.New("broker down"))
	after := testutil.ToFloat64(eventsPublishedCounter.WithLabelValues("snapshots", "error"))
	require.Equal(t, before+1, after)
}

func TestExportFailuresAreGatheredByStage(t *testing.T) {
	RecordExportFailure("fetch")

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	var family *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "strava_activities_export_failures_total" {
			family = f
		}
	}
	require.NotNil(t, family)

	found := false
	for _, m := range family.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "stage" && l.GetValue() == "fetch" {
				found = m.GetCounter().GetValue() >= 1
			}
		}
	}
	require.True(t, found)
}

func TestPushWithoutURLIsNoop(t *testing.T) {
	require.NoError(t, Push(context.Background(), "", "strava_export"))
}

func TestInitTracing(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{ServiceName: "strava-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	_, span := Tracer("test").Start(context.Background(), "noop")
	span.End()
}
