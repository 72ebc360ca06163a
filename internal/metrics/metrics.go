package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "irrig"

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeConfirmed = "confirmed"
	OutcomeTimeout   = "timeout"
)

// Metrics aggregates the controller's prometheus instruments. All instruments
// register against the supplied Registerer so tests can use a fresh registry.
type Metrics struct {
	Polls         *prometheus.CounterVec
	WriteAttempts *prometheus.CounterVec
	Verifications *prometheus.CounterVec
	SyncDuration  prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Polls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Channel reads by outcome.",
			},
			[]string{"outcome"},
		),
		WriteAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "write_attempts_total",
				Help:      "Channel update attempts by outcome.",
			},
			[]string{"outcome"},
		),
		Verifications: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verifications_total",
				Help:      "Write verification results by outcome.",
			},
			[]string{"outcome"},
		),
		SyncDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Duration of full write-verify-retry cycles.",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
			},
		),
	}
}

// ObserveSync records a completed write cycle.
func (m *Metrics) ObserveSync(start time.Time) {
	m.SyncDuration.Observe(time.Since(start).Seconds())
}
