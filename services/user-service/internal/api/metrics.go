package api

import "github.com/prometheus/client_golang/prometheus"

var registrationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "user_service",
	Name:      "registrations_total",
	Help:      "Registration requests by result (created, existing, invalid, email_taken, error).",
}, []string{"result"})

func init() {
	prometheus.MustRegister(registrationCounter)
}

func recordRegistration(result string) {
	registrationCounter.WithLabelValues(result).Inc()
}
