package service

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the booking flow
type BookingMetrics struct {
	transitions        *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	submissions        *prometheus.CounterVec
	submissionLatency  prometheus.Histogram
	invites            prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Wizard step transitions",
		}, []string{"from", "to"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "booking",
			Name:      "validation_failures_total",
			Help:      "Contact form field validation failures",
		}, []string{"field", "kind"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Relay submission attempts by outcome",
		}, []string{"status"}),
		submissionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "portfolio",
			Subsystem: "booking",
			Name:      "submission_latency_seconds",
			Help:      "Latency of relay submissions",
			Buckets:   prometheus.DefBuckets,
		}),
		invites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "booking",
			Name:      "invites_exported_total",
			Help:      "Calendar invites downloaded",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitions, m.validationFailures, m.submissions, m.submissionLatency, m.invites)
	return m
}

func (m *BookingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *BookingMetrics) ObserveValidationFailure(field, kind string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(field, kind).Inc()
}

func (m *BookingMetrics) ObserveSubmission(status string, seconds float64) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(status).Inc()
	m.submissionLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveInvite() {
	if m == nil {
		return
	}
	m.invites.Inc()
}
