package directory

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "directory_client",
	Name:      "request_duration_seconds",
	Help:      "Latency of user directory calls by operation and outcome.",
	Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
}, []string{"operation", "outcome"})

func init() {
	prometheus.MustRegister(requestDuration)
}

func observe(operation string, start time.Time, err *error) {
	requestDuration.WithLabelValues(operation, outcome(*err)).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUserNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidRegistration):
		return "invalid"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "unavailable"
	}
}
