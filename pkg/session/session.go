package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-mailmerge/pkg/form"
	"github.com/goliatone/go-mailmerge/pkg/submission"
	"github.com/goliatone/go-mailmerge/pkg/template"
)

const (
	// FallbackErrorMessage is shown when a failure carries no message.
	FallbackErrorMessage = "An error occurred"
	// SuccessMessage is shown after a completed send.
	SuccessMessage = "Emails sent successfully!"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger shared with the orchestrator.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOrchestratorOptions forwards options to the underlying orchestrator.
func WithOrchestratorOptions(options ...submission.Option) Option {
	return func(s *Session) {
		s.orchestratorOpts = append(s.orchestratorOpts, options...)
	}
}

// WithEntries seeds the session with entries instead of one default entry.
// Entries are reshaped to the template's placeholder set.
func WithEntries(entries ...form.Entry) Option {
	return func(s *Session) {
		s.seed = form.CloneEntries(entries)
	}
}

// Session binds one template snapshot to its generated schema, the entry
// list and the submission orchestrator. Field edits and submits go through
// the session so the schema and the entries can never drift apart.
type Session struct {
	mu        sync.Mutex
	tpl       template.Template
	schema    *form.Schema
	list      *form.List
	submitted bool

	orchestrator     *submission.Orchestrator
	orchestratorOpts []submission.Option
	logger           *zap.Logger
	seed             []form.Entry
}

// New builds a session for tpl seeded with one default entry.
func New(tpl template.Template, credentials submission.CredentialProvider, dispatcher submission.Dispatcher, options ...Option) (*Session, error) {
	s := &Session{logger: zap.NewNop()}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}

	schema, err := schemaFor(tpl)
	if err != nil {
		return nil, err
	}

	orchestratorOpts := append([]submission.Option{submission.WithLogger(s.logger)}, s.orchestratorOpts...)
	orchestrator, err := submission.New(credentials, dispatcher, orchestratorOpts...)
	if err != nil {
		return nil, err
	}

	s.tpl = tpl.WithVariables(tpl.Variables...)
	s.schema = schema
	s.orchestrator = orchestrator
	s.list = form.NewList()
	if len(s.seed) == 0 {
		s.list.Append(schema.DefaultEntry())
	} else {
		s.list.Reset(s.seed)
		s.list.Reconcile(schema.Names())
	}
	s.seed = nil
	return s, nil
}

func schemaFor(tpl template.Template) (*form.Schema, error) {
	if err := tpl.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	schema, err := form.NewSchema(tpl.PlaceholderNames())
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return schema, nil
}

// Template returns the current template snapshot.
func (s *Session) Template() template.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tpl.WithVariables(s.tpl.Variables...)
}

// Schema returns the validation schema of the current template.
func (s *Session) Schema() *form.Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema
}

// SetTemplate swaps the template. The default entry shape and the schema are
// regenerated together from the new placeholder set and existing entries are
// reshaped to it; recorded errors are dropped.
func (s *Session) SetTemplate(tpl template.Template) error {
	schema, err := schemaFor(tpl)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tpl = tpl.WithVariables(tpl.Variables...)
	s.schema = schema
	s.list.Reconcile(schema.Names())
	s.submitted = false
	s.logger.Debug("session template changed", zap.String("template_id", tpl.ID), zap.Strings("variables", schema.Names()))
	return nil
}

// DefaultEntry returns a fresh entry shaped for the current template.
func (s *Session) DefaultEntry() form.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema.DefaultEntry()
}

// Add appends a default entry and returns its index.
func (s *Session) Add() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Append(s.schema.DefaultEntry())
}

// Remove deletes the entry at index. An out-of-range index panics.
func (s *Session) Remove(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list.Remove(index)
}

// Len returns the number of entries.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Len()
}

// Entry returns a copy of the entry at index.
func (s *Session) Entry(index int) form.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Get(index)
}

// Entries returns copies of every entry in order.
func (s *Session) Entries() []form.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.All()
}

// SetEmail updates the address of the entry at index.
func (s *Session) SetEmail(index int, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list.SetEmail(index, email)
	s.revalidateLocked(index)
}

// SetVariable updates one placeholder value of the entry at index. Names
// outside the current placeholder set are rejected.
func (s *Session) SetVariable(index int, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !contains(s.schema.Names(), name) {
		return fmt.Errorf("session: %w: %q is not a placeholder of template %q", form.ErrInvalidPlaceholder, name, s.tpl.ID)
	}
	s.list.SetVariable(index, name, value)
	s.revalidateLocked(index)
	return nil
}

// revalidateLocked refreshes one entry's errors once the user has submitted.
func (s *Session) revalidateLocked(index int) {
	if !s.submitted {
		return
	}
	errs, err := s.schema.ValidateEntry(index, s.list.Get(index))
	if err != nil {
		panic(err)
	}
	s.list.ReplaceErrorsAt(index, errs)
}

// FieldErrors returns the recorded validation errors with current positions.
func (s *Session) FieldErrors() form.ValidationErrors {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Errors()
}

// Errors groups the recorded validation errors by field path.
func (s *Session) Errors() form.ErrorMapping {
	return s.FieldErrors().Mapping()
}

// Submit validates every entry and, when all pass, hands a snapshot to the
// orchestrator. Validation failures are recorded per field and returned as
// form.ValidationErrors without any external call.
func (s *Session) Submit(ctx context.Context) (submission.Outcome, error) {
	if s.orchestrator.Status().InFlight {
		return submission.Outcome{}, submission.ErrInFlight
	}

	s.mu.Lock()
	if !s.schema.Matches(s.tpl.PlaceholderNames()) {
		s.mu.Unlock()
		panic(fmt.Errorf("session: %w: schema %q does not match template %q", form.ErrStaleSchema, s.schema.Fingerprint(), s.tpl.ID))
	}
	entries := s.list.All()
	err := s.schema.Validate(entries)
	s.submitted = true
	if err != nil {
		if errors.Is(err, form.ErrStaleSchema) {
			s.mu.Unlock()
			panic(err)
		}
		verrs, _ := form.AsValidationErrors(err)
		s.list.SetErrors(verrs)
		s.mu.Unlock()
		s.logger.Debug("session submit rejected", zap.Int("errors", len(verrs)))
		return submission.Outcome{}, err
	}
	s.list.ClearErrors()
	for i := range entries {
		entries[i].Email = strings.TrimSpace(entries[i].Email)
	}
	batch := submission.Batch{Template: s.tpl.WithVariables(s.tpl.Variables...), Entries: entries}
	s.mu.Unlock()

	return s.orchestrator.Submit(ctx, batch)
}

// Status exposes the orchestrator's in-flight flags and terminal state.
func (s *Session) Status() submission.Status {
	return s.orchestrator.Status()
}

// Result returns the last reported outcome and whether its view is open.
func (s *Session) Result() (submission.Outcome, bool, bool) {
	reporter := s.orchestrator.Reporter()
	outcome, ok := reporter.Outcome()
	return outcome, ok, reporter.Visible()
}

// DismissResult closes the result view.
func (s *Session) DismissResult() {
	s.orchestrator.Reporter().Dismiss()
}

// Banner returns the blocking error message for a failed attempt, or "" when
// the last attempt did not fail.
func (s *Session) Banner() string {
	status := s.orchestrator.Status()
	if status.State != submission.StateFailed {
		return ""
	}
	if status.Err != nil && status.Err.Message != "" {
		return status.Err.Message
	}
	return FallbackErrorMessage
}

// SuccessNotice returns the success text after a completed send, or "".
func (s *Session) SuccessNotice() string {
	if s.orchestrator.Status().State == submission.StateSucceeded {
		return SuccessMessage
	}
	return ""
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
