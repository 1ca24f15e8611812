// Package metrics holds the Prometheus instruments shared across handlers
// and services. Instruments are registered once at construction; holders
// receive the struct rather than reaching for package globals.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RegistrationsTotal   *prometheus.CounterVec
	RegistrationDuration prometheus.Histogram
	RateLimitedTotal     prometheus.Counter
	VerificationsTotal   *prometheus.CounterVec
	NotificationsTotal   *prometheus.CounterVec
	AuditDroppedTotal    prometheus.Counter
	OutboxPublishedTotal prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RegistrationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "healthfirst_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}),
		RegistrationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthfirst_registration_duration_seconds",
			Help:    "End-to-end latency of the registration pipeline",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		RateLimitedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthfirst_rate_limited_total",
			Help: "Registration requests rejected by the rate limiter",
		}),
		VerificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "healthfirst_verifications_total",
			Help: "Email verification attempts by result",
		}, []string{"result"}),
		NotificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "healthfirst_notifications_total",
			Help: "Outbound notification attempts by kind and status",
		}, []string{"kind", "status"}),
		AuditDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthfirst_audit_events_dropped_total",
			Help: "Audit events dropped because the recorder buffer was full",
		}),
		OutboxPublishedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "healthfirst_outbox_published_total",
			Help: "Outbox events successfully published to the event stream",
		}),
	}
}

// RecordRegistration increments the registration counter for an outcome.
func (m *Metrics) RecordRegistration(outcome string) {
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

// RecordVerification increments the verification counter for a result.
func (m *Metrics) RecordVerification(result string) {
	m.VerificationsTotal.WithLabelValues(result).Inc()
}

// RecordNotification increments the notification counter.
func (m *Metrics) RecordNotification(kind, status string) {
	m.NotificationsTotal.WithLabelValues(kind, status).Inc()
}
