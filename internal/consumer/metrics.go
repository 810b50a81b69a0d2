package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alainabartfeld/strava-activities/internal/snapshot"
)

// Message outcomes recorded by the processor.
const (
	outcomeCommitted    = "committed"
	outcomeHandlerError = "handler_error"
	outcomeUndecodable  = "undecodable"
)

const undecodedEventType = "undecoded"

var (
	messagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strava_activities",
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Snapshot event messages read, labeled by event type and outcome.",
	}, []string{"event_type", "outcome"})

	eventLagHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "strava_activities",
		Subsystem: "consumer",
		Name:      "event_lag_seconds",
		Help:      "Delay between publishing an event and committing it.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"event_type"})

	snapshotsLoadedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "strava_activities",
		Subsystem: "consumer",
		Name:      "snapshots_loaded_total",
		Help:      "Snapshots loaded into the warehouse from snapshot.created events.",
	})

	loadedSnapshotDateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "strava_activities",
		Subsystem: "consumer",
		Name:      "loaded_snapshot_date_seconds",
		Help:      "Unix time of the calendar date of the last snapshot loaded.",
	})

	loadedSnapshotVersionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "strava_activities",
		Subsystem: "consumer",
		Name:      "loaded_snapshot_version",
		Help:      "Per-day version of the last snapshot loaded.",
	})
)

func init() {
	prometheus.MustRegister(
		messagesCounter,
		eventLagHistogram,
		snapshotsLoadedCounter,
		loadedSnapshotDateGauge,
		loadedSnapshotVersionGauge,
	)
}

func recordCommitted(msg Message, now time.Time) {
	messagesCounter.WithLabelValues(msg.EventType, outcomeCommitted).Inc()
	if !msg.Timestamp.IsZero() {
		eventLagHistogram.WithLabelValues(msg.EventType).Observe(now.Sub(msg.Timestamp).Seconds())
	}
}

func recordHandlerError(msg Message) {
	messagesCounter.WithLabelValues(msg.EventType, outcomeHandlerError).Inc()
}

func recordUndecodable() {
	messagesCounter.WithLabelValues(undecodedEventType, outcomeUndecodable).Inc()
}

func recordSnapshotLoaded(v snapshot.Version) {
	snapshotsLoadedCounter.Inc()
	loadedSnapshotDateGauge.Set(float64(v.Date.Unix()))
	loadedSnapshotVersionGauge.Set(float64(v.Seq))
}
