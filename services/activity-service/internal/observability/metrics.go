// Package observability holds the activity service's Prometheus collectors.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_service",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted.",
	})
	publishedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_service",
		Name:      "events_published_total",
		Help:      "Ingestion events handed to the message bus.",
	})
	publishFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_service",
		Name:      "publish_failures_total",
		Help:      "Ingestion events that could not be published after the activity was persisted.",
	})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, publishedCounter, publishFailures)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordPublish counts a publish outcome.
func RecordPublish(ok bool) {
	if ok {
		publishedCounter.Inc()
		return
	}
	publishFailures.Inc()
}
