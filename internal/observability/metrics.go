// Package observability holds the process-wide Prometheus collectors and tracing setup.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "strava_activities"

var (
	pagesFetchedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "pages_fetched_total",
		Help:      "Number of activity pages retrieved from the activities endpoint, including the terminating empty page.",
	})

	activitiesExportedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "activities_exported_total",
		Help:      "Number of activity records written to snapshots.",
	})

	exportFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "failures_total",
		Help:      "Number of aborted export runs, labeled by the failing stage.",
	}, []string{"stage"})

	exportDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "duration_seconds",
		Help:      "Wall-clock duration of complete export runs.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	snapshotWrittenGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "last_written_timestamp_seconds",
		Help:      "Unix timestamp of the most recent snapshot written.",
	})

	snapshotVersionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "last_written_version",
		Help:      "Per-day version number of the most recent snapshot written.",
	})

	malformedNameCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "malformed_names_total",
		Help:      "Number of files skipped during resolution because their names did not parse.",
	})

	warehouseRowsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "warehouse",
		Name:      "rows_loaded_total",
		Help:      "Number of activity rows copied into Postgres.",
	})

	eventsPublishedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Number of snapshot events published, labeled by topic and outcome.",
	}, []string{"topic", "outcome"})

	reportQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "report",
		Name:      "query_duration_seconds",
		Help:      "Time spent running each canned report query.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"report"})
)

func init() {
	prometheus.MustRegister(
		pagesFetchedCounter,
		activitiesExportedCounter,
		exportFailureCounter,
		exportDuration,
		snapshotWrittenGauge,
		snapshotVersionGauge,
		malformedNameCounter,
		warehouseRowsCounter,
		eventsPublishedCounter,
		reportQueryDuration,
	)
}

// RecordPageFetched counts one successful page response.
func RecordPageFetched() {
	pagesFetchedCounter.Inc()
}

// RecordExportSucceeded records the size and duration of a completed export.
func RecordExportSucceeded(activities int, elapsed time.Duration) {
	activitiesExportedCounter.Add(float64(activities))
	exportDuration.Observe(elapsed.Seconds())
}

// RecordExportFailure counts an aborted export for the given stage (auth, fetch, write).
func RecordExportFailure(stage string) {
	exportFailureCounter.WithLabelValues(stage).Inc()
}

// RecordSnapshotWritten updates the snapshot watermark gauges.
func RecordSnapshotWritten(ts time.Time, version int) {
	if ts.IsZero() {
		return
	}
	snapshotWrittenGauge.Set(float64(ts.Unix()))
	snapshotVersionGauge.Set(float64(version))
}

// RecordMalformedSnapshotName counts a file excluded from a catalog.
func RecordMalformedSnapshotName() {
	malformedNameCounter.Inc()
}

// RecordWarehouseRows counts rows copied into the warehouse.
func RecordWarehouseRows(n int) {
	warehouseRowsCounter.Add(float64(n))
}

// RecordEventPublished counts a snapshot event publication attempt.
func RecordEventPublished(topic string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	eventsPublishedCounter.WithLabelValues(topic, outcome).Inc()
}

// ObserveReportQuery records how long a named report query took.
func ObserveReportQuery(report string, elapsed time.Duration) {
	reportQueryDuration.WithLabelValues(report).Observe(elapsed.Seconds())
}

// Push sends the default registry to a Prometheus Pushgateway. Short-lived CLI runs use it
// in place of a scrape endpoint.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	return push.New(url, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx)
}
