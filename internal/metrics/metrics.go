// Package metrics exposes the controller's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "buildctl"

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	RetryDecisions       *prometheus.CounterVec
	PauseDecisions       *prometheus.CounterVec
	CounterStoreErrors   *prometheus.CounterVec
	CascadeWriteFailures *prometheus.CounterVec
	NotificationFailures prometheus.Counter
	PauseSkewBuilds      prometheus.Gauge
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RetryDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_decisions_total",
			Help:      "Retry decisions made for failed tasks, by decision.",
		}, []string{"decision"}),
		PauseDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pause_decisions_total",
			Help:      "Pause decisions made for tasks about to execute, by decision.",
		}, []string{"decision"}),
		CounterStoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_store_errors_total",
			Help:      "Failed calls to the retry counter store, by operation.",
		}, []string{"op"}),
		CascadeWriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_write_failures_total",
			Help:      "Failed status cascade writes, by step.",
		}, []string{"step"}),
		NotificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Pause notifications that could not be sent.",
		}),
		PauseSkewBuilds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pause_skew_builds",
			Help:      "Builds still RUNNING while one of their tasks is PAUSE, as of the last probe.",
		}),
	}

	reg.MustRegister(
		m.RetryDecisions,
		m.PauseDecisions,
		m.CounterStoreErrors,
		m.CascadeWriteFailures,
		m.NotificationFailures,
		m.PauseSkewBuilds,
	)
	return m
}

func decision(yes bool, positive, negative string) string {
	if yes {
		return positive
	}
	return negative
}

func (m *Metrics) ObserveRetry(retry bool) {
	if m != nil {
		m.RetryDecisions.WithLabelValues(decision(retry, "retry", "no_retry")).Inc()
	}
}

func (m *Metrics) ObservePause(pause bool) {
	if m != nil {
		m.PauseDecisions.WithLabelValues(decision(pause, "pause", "no_pause")).Inc()
	}
}

func (m *Metrics) CounterError(op string) {
	if m != nil {
		m.CounterStoreErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) CascadeFailure(step string) {
	if m != nil {
		m.CascadeWriteFailures.WithLabelValues(step).Inc()
	}
}

func (m *Metrics) NotificationFailure() {
	if m != nil {
		m.NotificationFailures.Inc()
	}
}

func (m *Metrics) SetPauseSkew(builds int) {
	if m != nil {
		m.PauseSkewBuilds.Set(float64(builds))
	}
}
