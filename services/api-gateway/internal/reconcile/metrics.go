package reconcile

import "github.com/prometheus/client_golang/prometheus"

var reconciliationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gateway",
	Subsystem: "reconciliation",
	Name:      "requests_total",
	Help:      "Requests passing the identity filter, labeled by how the identity was settled.",
}, []string{"outcome"})

func init() {
	prometheus.MustRegister(reconciliationCounter)
}

func recordOutcome(outcome Outcome) {
	reconciliationCounter.WithLabelValues(string(outcome)).Inc()
}
