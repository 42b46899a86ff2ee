package submission_test

import (
	"testing"

	"github.com/goliatone/go-mailmerge/pkg/submission"
)

func TestReporter_ShowReplacesAndDismissKeeps(t *testing.T) {
	r := submission.NewReporter()
	if _, ok := r.Outcome(); ok || r.Visible() {
		t.Fatalf("expected empty hidden reporter")
	}

	r.Show(submission.NewOutcome([]submission.EntryResult{{Email: "a@b.com", Succeeded: true}}))
	r.Show(submission.NewOutcome([]submission.EntryResult{{Email: "c@d.com", Succeeded: false}}))

	outcome, ok := r.Outcome()
	if !ok || len(outcome.Results) != 1 || outcome.Results[0].Email != "c@d.com" {
		t.Fatalf("expected latest outcome only, got %+v", outcome)
	}

	r.Dismiss()
	if r.Visible() {
		t.Fatalf("expected hidden after dismiss")
	}
	if _, ok := r.Outcome(); !ok {
		t.Fatalf("expected outcome retained after dismiss")
	}
}

func TestNewOutcome(t *testing.T) {
	if submission.NewOutcome(nil).Succeeded {
		t.Fatalf("empty outcome must not be successful")
	}

	outcome := submission.NewOutcome([]submission.EntryResult{
		{Email: "a@b.com", Succeeded: true},
		{Email: "c@d.com", Succeeded: false, Message: "bounced"},
	})
	if outcome.Succeeded {
		t.Fatalf("expected overall failure")
	}
	succeeded, failed := outcome.Counts()
	if succeeded != 1 || failed != 1 {
		t.Fatalf("unexpected counts %d/%d", succeeded, failed)
	}
	if got := outcome.Failed(); len(got) != 1 || got[0].Email != "c@d.com" {
		t.Fatalf("unexpected failed list %+v", got)
	}
}
