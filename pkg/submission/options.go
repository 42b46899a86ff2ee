package submission

import (
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-mailmerge/pkg/form"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// Validator checks entries before any external call is made.
type Validator func(entries []form.Entry) error

// Metrics receives attempt-level measurements.
type Metrics interface {
	AttemptRejected(reason string)
	AttemptCompleted(state State, kind ErrorKind, elapsed time.Duration)
	EntriesDispatched(succeeded, failed int)
}

type nopMetrics struct{}

func (nopMetrics) AttemptRejected(string)                           {}
func (nopMetrics) AttemptCompleted(State, ErrorKind, time.Duration) {}
func (nopMetrics) EntriesDispatched(int, int)                       {}

// WithReporter sets the reporter that receives successful outcomes.
func WithReporter(reporter *Reporter) Option {
	return func(o *Orchestrator) {
		if reporter != nil {
			o.reporter = reporter
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics installs a metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(o *Orchestrator) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithValidator runs validator in the ValidatingLocally phase. A failure
// returns the orchestrator to its previous resting state without touching
// either capability.
func WithValidator(validator Validator) Option {
	return func(o *Orchestrator) {
		o.validator = validator
	}
}

// WithObserver registers a callback invoked after every state change.
func WithObserver(observer func(Status)) Option {
	return func(o *Orchestrator) {
		if observer != nil {
			o.observers = append(o.observers, observer)
		}
	}
}

// WithClock overrides the time source used for attempt durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}
