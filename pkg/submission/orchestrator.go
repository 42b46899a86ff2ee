package submission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-mailmerge/pkg/form"
)

// Status is a point-in-time view of the orchestrator for presentation.
type Status struct {
	State                 State    `json:"state"`
	InFlight              bool     `json:"in_flight"`
	IsAcquiringCredential bool     `json:"is_acquiring_credential"`
	IsDispatching         bool     `json:"is_dispatching"`
	AttemptID             string   `json:"attempt_id,omitempty"`
	Err                   *Error   `json:"error,omitempty"`
	Outcome               *Outcome `json:"outcome,omitempty"`
}

// Orchestrator runs submission attempts one at a time.
type Orchestrator struct {
	credentials CredentialProvider
	dispatcher  Dispatcher
	validator   Validator
	reporter    *Reporter
	logger      *zap.Logger
	metrics     Metrics
	observers   []func(Status)
	now         func() time.Time

	mu      sync.Mutex
	state   State
	attempt string
	err     *Error
	outcome *Outcome
}

// New builds an orchestrator over the two capabilities.
func New(credentials CredentialProvider, dispatcher Dispatcher, options ...Option) (*Orchestrator, error) {
	if credentials == nil {
		return nil, ErrMissingCredentialProvider
	}
	if dispatcher == nil {
		return nil, ErrMissingDispatcher
	}

	o := &Orchestrator{
		credentials: credentials,
		dispatcher:  dispatcher,
		reporter:    NewReporter(),
		logger:      zap.NewNop(),
		metrics:     nopMetrics{},
		now:         time.Now,
		state:       StateIdle,
	}
	for _, opt := range options {
		if opt != nil {
			opt(o)
		}
	}
	return o, nil
}

// Reporter returns the reporter receiving successful outcomes.
func (o *Orchestrator) Reporter() *Reporter {
	return o.reporter
}

// Status returns a snapshot of the current state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

func (o *Orchestrator) statusLocked() Status {
	status := Status{
		State:                 o.state,
		InFlight:              o.state.InFlight(),
		IsAcquiringCredential: o.state == StateAcquiringCredential,
		IsDispatching:         o.state == StateDispatching,
		AttemptID:             o.attempt,
	}
	if o.err != nil {
		errCopy := *o.err
		status.Err = &errCopy
	}
	if o.outcome != nil {
		outcome := o.outcome.Clone()
		status.Outcome = &outcome
	}
	return status
}

type restingSnapshot struct {
	state   State
	attempt string
	err     *Error
	outcome *Outcome
}

// Submit runs one attempt: local validation (when configured), credential
// acquisition, then dispatch. It returns ErrInFlight when another attempt is
// running, the validator's error when entries are rejected locally, or an
// *Error when a capability fails. The batch is copied before use.
func (o *Orchestrator) Submit(ctx context.Context, batch Batch) (Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	batch = batch.Clone()
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}

	first := StateAcquiringCredential
	if o.validator != nil {
		first = StateValidatingLocally
	}

	resting, err := o.begin(batch.ID, first)
	if err != nil {
		o.metrics.AttemptRejected("in_flight")
		o.logger.Warn("submission rejected", zap.String("attempt_id", batch.ID), zap.Error(err))
		return Outcome{}, err
	}

	started := o.now()
	logger := o.logger.With(
		zap.String("attempt_id", batch.ID),
		zap.String("template_id", batch.Template.ID),
		zap.Int("entries", len(batch.Entries)),
	)

	if o.validator != nil {
		if err := o.validate(batch.Entries, resting); err != nil {
			o.restore(resting)
			o.metrics.AttemptRejected("validation")
			logger.Info("submission rejected by local validation", zap.Error(err))
			return Outcome{}, err
		}
		o.transition(StateAcquiringCredential)
	}

	logger.Debug("acquiring credential")
	if err := o.ensureCredential(ctx); err != nil {
		failure := newError(KindCredential, err)
		o.fail(failure)
		o.metrics.AttemptCompleted(StateFailed, KindCredential, o.now().Sub(started))
		logger.Warn("credential acquisition failed", zap.Error(err))
		return Outcome{}, failure
	}

	o.transition(StateDispatching)
	logger.Debug("dispatching batch")
	outcome, err := o.dispatch(ctx, batch)
	if err != nil {
		failure := newError(KindDispatch, err)
		o.fail(failure)
		o.metrics.AttemptCompleted(StateFailed, KindDispatch, o.now().Sub(started))
		logger.Warn("dispatch failed", zap.Error(err))
		return Outcome{}, failure
	}

	o.succeed(outcome)
	o.reporter.Show(outcome)

	succeeded, failed := outcome.Counts()
	o.metrics.EntriesDispatched(succeeded, failed)
	o.metrics.AttemptCompleted(StateSucceeded, "", o.now().Sub(started))
	logger.Info("submission completed",
		zap.Bool("all_succeeded", outcome.Succeeded),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
	)
	return outcome.Clone(), nil
}

func (o *Orchestrator) begin(attempt string, first State) (restingSnapshot, error) {
	o.mu.Lock()
	if o.state.InFlight() {
		o.mu.Unlock()
		return restingSnapshot{}, ErrInFlight
	}
	resting := restingSnapshot{state: o.state, attempt: o.attempt, err: o.err, outcome: o.outcome}
	o.mustTransitionLocked(first)
	o.attempt = attempt
	o.err = nil
	o.outcome = nil
	status := o.statusLocked()
	o.mu.Unlock()

	o.notify(status)
	return resting, nil
}

func (o *Orchestrator) restore(resting restingSnapshot) {
	o.mu.Lock()
	o.mustTransitionLocked(resting.state)
	o.attempt = resting.attempt
	o.err = resting.err
	o.outcome = resting.outcome
	status := o.statusLocked()
	o.mu.Unlock()

	o.notify(status)
}

func (o *Orchestrator) transition(next State) {
	o.mu.Lock()
	o.mustTransitionLocked(next)
	status := o.statusLocked()
	o.mu.Unlock()

	o.notify(status)
}

func (o *Orchestrator) fail(failure *Error) {
	o.mu.Lock()
	o.mustTransitionLocked(StateFailed)
	o.err = failure
	status := o.statusLocked()
	o.mu.Unlock()

	o.notify(status)
}

func (o *Orchestrator) succeed(outcome Outcome) {
	clone := outcome.Clone()
	o.mu.Lock()
	o.mustTransitionLocked(StateSucceeded)
	o.outcome = &clone
	status := o.statusLocked()
	o.mu.Unlock()

	o.notify(status)
}

func (o *Orchestrator) mustTransitionLocked(next State) {
	if !o.state.CanTransition(next) {
		current := o.state
		o.mu.Unlock()
		panic(fmt.Sprintf("submission: invalid transition %s -> %s", current, next))
	}
	o.state = next
}

func (o *Orchestrator) notify(status Status) {
	for _, observer := range o.observers {
		observer(status)
	}
}

// validate restores the resting state before re-raising a validator panic so
// the orchestrator never stays stuck in flight.
func (o *Orchestrator) validate(entries []form.Entry, resting restingSnapshot) error {
	defer func() {
		if r := recover(); r != nil {
			o.restore(resting)
			panic(r)
		}
	}()
	return o.validator(entries)
}

func (o *Orchestrator) ensureCredential(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("credential provider panicked: %v", r)
		}
	}()
	return o.credentials.EnsureCredential(ctx)
}

func (o *Orchestrator) dispatch(ctx context.Context, batch Batch) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Outcome{}
			err = fmt.Errorf("dispatcher panicked: %v", r)
		}
	}()

	outcome, err = o.dispatcher.Dispatch(ctx, batch)
	if err != nil {
		return Outcome{}, err
	}
	if len(outcome.Results) != len(batch.Entries) {
		return Outcome{}, fmt.Errorf("dispatcher returned %d results for %d entries", len(outcome.Results), len(batch.Entries))
	}
	return NewOutcome(outcome.Results), nil
}
