package submission_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-mailmerge/pkg/form"
	"github.com/goliatone/go-mailmerge/pkg/submission"
	"github.com/goliatone/go-mailmerge/pkg/template"
)

type stubCredentials struct {
	calls int
	err   error
	hook  func()
}

func (s *stubCredentials) EnsureCredential(context.Context) error {
	s.calls++
	if s.hook != nil {
		s.hook()
	}
	return s.err
}

type stubDispatcher struct {
	calls   int
	batches []submission.Batch
	failAt  map[int]string
	err     error
	hook    func()
}

func (s *stubDispatcher) Dispatch(_ context.Context, batch submission.Batch) (submission.Outcome, error) {
	s.calls++
	s.batches = append(s.batches, batch)
	if s.hook != nil {
		s.hook()
	}
	if s.err != nil {
		return submission.Outcome{}, s.err
	}
	results := make([]submission.EntryResult, len(batch.Entries))
	for i, entry := range batch.Entries {
		results[i] = submission.EntryResult{Email: entry.Email, Succeeded: true}
		if msg, ok := s.failAt[i]; ok {
			results[i].Succeeded = false
			results[i].Message = msg
		}
	}
	return submission.NewOutcome(results), nil
}

func sampleBatch(emails ...string) submission.Batch {
	entries := make([]form.Entry, 0, len(emails))
	for _, email := range emails {
		entries = append(entries, form.Entry{Email: email, Variables: form.VariableMap{"company": "Acme"}})
	}
	return submission.Batch{
		Template: template.Template{ID: "invite", Variables: []string{"company"}},
		Entries:  entries,
	}
}

func newOrchestrator(t *testing.T, creds submission.CredentialProvider, dispatcher submission.Dispatcher, opts ...submission.Option) *submission.Orchestrator {
	t.Helper()
	o, err := submission.New(creds, dispatcher, opts...)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o
}

func TestNew_RequiresCapabilities(t *testing.T) {
	if _, err := submission.New(nil, &stubDispatcher{}); !errors.Is(err, submission.ErrMissingCredentialProvider) {
		t.Fatalf("expected ErrMissingCredentialProvider, got %v", err)
	}
	if _, err := submission.New(&stubCredentials{}, nil); !errors.Is(err, submission.ErrMissingDispatcher) {
		t.Fatalf("expected ErrMissingDispatcher, got %v", err)
	}
}

func TestSubmit_CredentialFailureSkipsDispatch(t *testing.T) {
	creds := &stubCredentials{err: errors.New("token expired")}
	dispatcher := &stubDispatcher{}
	o := newOrchestrator(t, creds, dispatcher)

	_, err := o.Submit(context.Background(), sampleBatch("a@b.com"))

	failure, ok := submission.AsError(err)
	if !ok {
		t.Fatalf("expected *submission.Error, got %v", err)
	}
	if failure.Kind != submission.KindCredential || failure.Message != "token expired" {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if dispatcher.calls != 0 {
		t.Fatalf("expected dispatcher never called, got %d calls", dispatcher.calls)
	}

	status := o.Status()
	if status.State != submission.StateFailed || status.InFlight {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Err == nil || status.Err.Kind != submission.KindCredential {
		t.Fatalf("expected credential error in status, got %+v", status.Err)
	}
}

func TestSubmit_PartialFailureOutcome(t *testing.T) {
	dispatcher := &stubDispatcher{failAt: map[int]string{1: "mailbox unavailable"}}
	o := newOrchestrator(t, &stubCredentials{}, dispatcher)

	outcome, err := o.Submit(context.Background(), sampleBatch("a@b.com", "c@d.com", "e@f.com"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := submission.Outcome{
		Results: []submission.EntryResult{
			{Email: "a@b.com", Succeeded: true},
			{Email: "c@d.com", Succeeded: false, Message: "mailbox unavailable"},
			{Email: "e@f.com", Succeeded: true},
		},
		Succeeded: false,
	}
	if diff := cmp.Diff(want, outcome); diff != "" {
		t.Fatalf("outcome mismatch (-want +got):\n%s", diff)
	}

	if o.Status().State != submission.StateSucceeded {
		t.Fatalf("expected succeeded state, got %s", o.Status().State)
	}
	reported, ok := o.Reporter().Outcome()
	if !ok || !o.Reporter().Visible() {
		t.Fatalf("expected reporter to show the outcome")
	}
	if diff := cmp.Diff(want, reported); diff != "" {
		t.Fatalf("reported outcome mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmit_DispatchFailure(t *testing.T) {
	dispatcher := &stubDispatcher{err: errors.New("provider unavailable")}
	o := newOrchestrator(t, &stubCredentials{}, dispatcher)

	_, err := o.Submit(context.Background(), sampleBatch("a@b.com"))
	failure, ok := submission.AsError(err)
	if !ok || failure.Kind != submission.KindDispatch {
		t.Fatalf("expected dispatch error, got %v", err)
	}
	if failure.Message != "provider unavailable" {
		t.Fatalf("expected collaborator message, got %q", failure.Message)
	}
	if o.Reporter().Visible() {
		t.Fatalf("reporter must stay hidden on failure")
	}
}

func TestSubmit_ResultCountMismatchIsDispatchError(t *testing.T) {
	dispatcher := submission.DispatchFunc(func(context.Context, submission.Batch) (submission.Outcome, error) {
		return submission.NewOutcome([]submission.EntryResult{{Email: "a@b.com", Succeeded: true}}), nil
	})
	o := newOrchestrator(t, &stubCredentials{}, dispatcher)

	_, err := o.Submit(context.Background(), sampleBatch("a@b.com", "c@d.com"))
	if failure, ok := submission.AsError(err); !ok || failure.Kind != submission.KindDispatch {
		t.Fatalf("expected dispatch error, got %v", err)
	}
}

func TestSubmit_RecoversCapabilityPanics(t *testing.T) {
	creds := submission.CredentialFunc(func(context.Context) error {
		panic("boom")
	})
	dispatcher := &stubDispatcher{}
	o := newOrchestrator(t, creds, dispatcher)

	_, err := o.Submit(context.Background(), sampleBatch("a@b.com"))
	if failure, ok := submission.AsError(err); !ok || failure.Kind != submission.KindCredential {
		t.Fatalf("expected credential error, got %v", err)
	}
	if dispatcher.calls != 0 {
		t.Fatalf("dispatcher must not run after a credential panic")
	}
}

func TestSubmit_RejectsReentrantCalls(t *testing.T) {
	var (
		o          *submission.Orchestrator
		nestedErr  error
		seenStates []submission.Status
	)
	creds := &stubCredentials{}
	dispatcher := &stubDispatcher{}
	creds.hook = func() {
		seenStates = append(seenStates, o.Status())
		_, nestedErr = o.Submit(context.Background(), sampleBatch("x@y.com"))
	}
	o = newOrchestrator(t, creds, dispatcher)

	if _, err := o.Submit(context.Background(), sampleBatch("a@b.com")); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if !errors.Is(nestedErr, submission.ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", nestedErr)
	}
	if creds.calls != 1 || dispatcher.calls != 1 {
		t.Fatalf("expected one call per capability, got creds=%d dispatch=%d", creds.calls, dispatcher.calls)
	}
	if len(seenStates) != 1 || !seenStates[0].InFlight || !seenStates[0].IsAcquiringCredential {
		t.Fatalf("expected in-flight acquiring status, got %+v", seenStates)
	}
}

func TestSubmit_ConcurrentCallsSerialised(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	creds := submission.CredentialFunc(func(context.Context) error {
		close(entered)
		<-release
		return nil
	})
	o := newOrchestrator(t, creds, &stubDispatcher{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = o.Submit(context.Background(), sampleBatch("a@b.com"))
	}()

	<-entered
	if _, err := o.Submit(context.Background(), sampleBatch("c@d.com")); !errors.Is(err, submission.ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}
	close(release)
	wg.Wait()

	if o.Status().State != submission.StateSucceeded {
		t.Fatalf("expected first attempt to complete, got %s", o.Status().State)
	}
}

func TestSubmit_FreshAttemptAfterTerminalState(t *testing.T) {
	creds := &stubCredentials{err: errors.New("denied")}
	dispatcher := &stubDispatcher{}
	o := newOrchestrator(t, creds, dispatcher)

	if _, err := o.Submit(context.Background(), sampleBatch("a@b.com")); err == nil {
		t.Fatalf("expected first attempt to fail")
	}
	firstAttempt := o.Status().AttemptID

	creds.err = nil
	outcome, err := o.Submit(context.Background(), sampleBatch("a@b.com"))
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if !outcome.Succeeded {
		t.Fatalf("expected success, got %+v", outcome)
	}

	status := o.Status()
	if status.Err != nil {
		t.Fatalf("expected previous error cleared, got %+v", status.Err)
	}
	if status.AttemptID == firstAttempt {
		t.Fatalf("expected a new attempt id")
	}
}

func TestSubmit_LocalValidationFailureReturnsToRestingState(t *testing.T) {
	creds := &stubCredentials{}
	dispatcher := &stubDispatcher{}
	schema := form.MustSchema([]string{"company"})
	o := newOrchestrator(t, creds, dispatcher, submission.WithValidator(schema.Validate))

	if _, err := o.Submit(context.Background(), sampleBatch("a@b.com")); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := o.Submit(context.Background(), submission.Batch{Template: template.Template{ID: "invite"}})
	verrs, ok := form.AsValidationErrors(err)
	if !ok || !verrs.Has("forms", form.KindEmptyCollection) {
		t.Fatalf("expected empty collection error, got %v", err)
	}
	if creds.calls != 1 || dispatcher.calls != 1 {
		t.Fatalf("expected no capability calls for rejected attempt, got creds=%d dispatch=%d", creds.calls, dispatcher.calls)
	}

	status := o.Status()
	if status.State != submission.StateSucceeded || status.Outcome == nil {
		t.Fatalf("expected previous succeeded state restored, got %+v", status)
	}
}

func TestSubmit_BatchIsSnapshot(t *testing.T) {
	dispatcher := &stubDispatcher{}
	o := newOrchestrator(t, &stubCredentials{}, dispatcher)

	batch := sampleBatch("a@b.com")
	if _, err := o.Submit(context.Background(), batch); err != nil {
		t.Fatalf("submit: %v", err)
	}
	dispatcher.batches[0].Entries[0].Variables["company"] = "mutated"

	if batch.Entries[0].Variables["company"] != "Acme" {
		t.Fatalf("caller entries were aliased")
	}
	if dispatcher.batches[0].ID == "" {
		t.Fatalf("expected batch id to be assigned")
	}
}

func TestSubmit_ObserverSeesEveryTransition(t *testing.T) {
	var states []submission.State
	observer := func(status submission.Status) {
		states = append(states, status.State)
	}
	o := newOrchestrator(t, &stubCredentials{}, &stubDispatcher{},
		submission.WithValidator(func([]form.Entry) error { return nil }),
		submission.WithObserver(observer),
	)

	if _, err := o.Submit(context.Background(), sampleBatch("a@b.com")); err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := []submission.State{
		submission.StateValidatingLocally,
		submission.StateAcquiringCredential,
		submission.StateDispatching,
		submission.StateSucceeded,
	}
	if diff := cmp.Diff(want, states); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to submission.State
		want     bool
	}{
		{submission.StateIdle, submission.StateAcquiringCredential, true},
		{submission.StateIdle, submission.StateDispatching, false},
		{submission.StateAcquiringCredential, submission.StateDispatching, true},
		{submission.StateAcquiringCredential, submission.StateSucceeded, false},
		{submission.StateDispatching, submission.StateFailed, true},
		{submission.StateValidatingLocally, submission.StateIdle, true},
		{submission.StateSucceeded, submission.StateValidatingLocally, true},
		{submission.StateFailed, submission.StateDispatching, false},
	}

	for _, tc := range tests {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}
