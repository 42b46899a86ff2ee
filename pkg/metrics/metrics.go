// Package metrics exports submission activity as Prometheus series.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goliatone/go-mailmerge/pkg/submission"
)

const namespace = "mailmerge"

// Collector implements submission.Metrics.
type Collector struct {
	rejected  *prometheus.CounterVec
	attempts  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	delivered *prometheus.CounterVec
}

var _ submission.Metrics = (*Collector)(nil)

// New registers the submission series on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Collector{
		// Labels:
		// - reason: "in_flight" or "validation"
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "rejected_total",
			Help:      "Submission attempts stopped before any external call",
		}, []string{"reason"}),
		// Labels:
		// - state: "succeeded" or "failed"
		// - kind:  "credential_error", "dispatch_error" or ""
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "attempts_total",
			Help:      "Submission attempts that reached a terminal state",
		}, []string{"state", "kind"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "duration_seconds",
			Help:      "Time from attempt start to terminal state",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
		// Labels:
		// - result: "succeeded" or "failed"
		delivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "entries_total",
			Help:      "Entries handed to a transport, by per-entry result",
		}, []string{"result"}),
	}
}

func (c *Collector) AttemptRejected(reason string) {
	c.rejected.WithLabelValues(reason).Inc()
}

func (c *Collector) AttemptCompleted(state submission.State, kind submission.ErrorKind, elapsed time.Duration) {
	c.attempts.WithLabelValues(state.String(), string(kind)).Inc()
	c.duration.WithLabelValues(state.String()).Observe(elapsed.Seconds())
}

func (c *Collector) EntriesDispatched(succeeded, failed int) {
	c.delivered.WithLabelValues("succeeded").Add(float64(succeeded))
	c.delivered.WithLabelValues("failed").Add(float64(failed))
}
