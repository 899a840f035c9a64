package metricsvc

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/approvals/core/workflow"
)

const namespace = "approvals"

// Metrics counts workflow transitions & HTTP requests.
type Metrics struct {
	TransitionsApplied *prometheus.CounterVec
	TransitionsRefused *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

var _ workflow.Metrics = (*Metrics)(nil) // interface compliance check

func New() *Metrics {
	return &Metrics{
		TransitionsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "transitions_applied_total", Help: "Number of persisted workflow transitions."},
			[]string{"variant", "action", "status"},
		),
		TransitionsRefused: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "transitions_refused_total", Help: "Number of refused workflow transitions by reason."},
			[]string{"variant", "action", "reason"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Number of HTTP requests by route & status code."},
			[]string{"method", "route", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latencies.", Buckets: prometheus.DefBuckets},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(m.TransitionsApplied)
	reg.MustRegister(m.TransitionsRefused)
	reg.MustRegister(m.HTTPRequests)
	reg.MustRegister(m.HTTPDuration)
}

func (m *Metrics) TransitionApplied(v workflow.Variant, a workflow.Action, to workflow.Status) {
	m.TransitionsApplied.WithLabelValues(string(v), string(a), string(to)).Inc()
}

func (m *Metrics) TransitionRefused(v workflow.Variant, a workflow.Action, reason string) {
	m.TransitionsRefused.WithLabelValues(string(v), string(a), reason).Inc()
}
