package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "purrfect_waitlist"

var (
	// Registrations counts registrations by origin (backend, local-fallback).
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Registrations by origin.",
	}, []string{"origin"})

	RegistrationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registration_errors_total",
		Help:      "Failed registrations by error kind.",
	}, []string{"kind"})

	QuizSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quiz_submissions_total",
		Help:      "Quiz submissions by result.",
	}, []string{"result"})

	WelcomeEmailFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "welcome_email_failures_total",
		Help:      "Welcome notifications that failed after all retries.",
	})

	FallbackQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fallback_queue_depth",
		Help:      "Locally synthesized users awaiting reconciliation.",
	})

	FallbacksReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fallbacks_reconciled_total",
		Help:      "Reconciliation outcomes for fallback users.",
	}, []string{"outcome"})

	RetentionDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retention_deleted_total",
		Help:      "Unverified users removed by the retention job.",
	})

	// PollerStatus is 1 for the current status label and 0 for the others.
	PollerStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stats_poller_status",
		Help:      "Current connection status of the stats poller.",
	}, []string{"status"})

	PollerConsecutiveFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stats_poller_consecutive_failures",
		Help:      "Consecutive failed stats polls since the last success.",
	})

	WaitlistTotalUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "waitlist_total_users",
		Help:      "Last known good waitlist size.",
	})
)

// SetPollerStatus flips the status gauge so exactly one label reads 1.
func SetPollerStatus(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		PollerStatus.WithLabelValues(s).Set(v)
	}
}
