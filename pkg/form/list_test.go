package form_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-mailmerge/pkg/form"
)

func validEntry(email, company, date string) form.Entry {
	return form.Entry{Email: email, Variables: form.VariableMap{"company": company, "date": date}}
}

func TestList_AppendStoresCopies(t *testing.T) {
	entry := validEntry("a@b.com", "Acme", "today")
	list := form.NewList(entry)

	entry.Variables["company"] = "mutated"
	if got := list.Get(0).Variables["company"]; got != "Acme" {
		t.Fatalf("expected stored copy to be isolated, got %q", got)
	}

	out := list.Get(0)
	out.Variables["company"] = "mutated"
	if got := list.Get(0).Variables["company"]; got != "Acme" {
		t.Fatalf("expected Get to return a copy, got %q", got)
	}
}

func TestList_RemoveShiftsEntriesAndErrors(t *testing.T) {
	schema := form.MustSchema([]string{"company", "date"})
	list := form.NewList(
		validEntry("a@b.com", "Acme", "today"),
		validEntry("", "Beta", "today"),
		validEntry("c@d.com", "", "today"),
	)

	err := schema.Validate(list.All())
	verrs, ok := form.AsValidationErrors(err)
	if !ok {
		t.Fatalf("expected validation errors, got %v", err)
	}
	list.SetErrors(verrs)

	list.Remove(0)

	if list.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", list.Len())
	}
	if got := list.Get(0).Variables["company"]; got != "Beta" {
		t.Fatalf("expected Beta to shift to index 0, got %q", got)
	}

	want := []string{"forms[0].email", "forms[1].variables[company]"}
	if diff := cmp.Diff(want, list.Errors().Paths()); diff != "" {
		t.Fatalf("error paths mismatch (-want +got):\n%s", diff)
	}
}

func TestList_RemoveDropsRemovedEntryErrors(t *testing.T) {
	list := form.NewList(validEntry("", "", ""), validEntry("a@b.com", "x", "y"))
	list.SetErrors(form.ValidationErrors{
		{Index: 0, Field: form.FieldEmail, Kind: form.KindRequired, Message: "Email is required"},
	})

	list.Remove(0)

	if errs := list.Errors(); len(errs) != 0 {
		t.Fatalf("expected removed entry's errors to be dropped, got %v", errs)
	}
}

func TestList_RemoveOutOfRangePanics(t *testing.T) {
	list := form.NewList(validEntry("a@b.com", "x", "y"))

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for out-of-range removal")
		}
	}()
	list.Remove(1)
}

func TestList_StableIDs(t *testing.T) {
	list := form.NewList(validEntry("a@b.com", "x", "y"), validEntry("c@d.com", "x", "y"))
	second := list.ID(1)

	list.Remove(0)

	idx, ok := list.IndexOf(second)
	if !ok || idx != 0 {
		t.Fatalf("expected id to resolve to 0, got %d (%v)", idx, ok)
	}
}

func TestList_SetErrorsDropsOutOfRange(t *testing.T) {
	list := form.NewList(validEntry("a@b.com", "x", "y"))
	list.SetErrors(form.ValidationErrors{
		{Index: 4, Field: form.FieldEmail, Kind: form.KindRequired, Message: "Email is required"},
		{Index: form.CollectionIndex, Kind: form.KindEmptyCollection, Message: "At least one form is required"},
	})

	if diff := cmp.Diff([]string{"forms"}, list.Errors().Paths()); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestList_AppendClearsCollectionErrors(t *testing.T) {
	list := form.NewList()
	list.SetErrors(form.ValidationErrors{
		{Index: form.CollectionIndex, Kind: form.KindEmptyCollection, Message: "At least one form is required"},
	})

	list.Append(validEntry("a@b.com", "x", "y"))

	if errs := list.FormErrors(); len(errs) != 0 {
		t.Fatalf("expected collection errors cleared, got %v", errs)
	}
}

func TestList_ReplaceErrorsAt(t *testing.T) {
	list := form.NewList(validEntry("", "x", "y"), validEntry("", "x", "y"))
	list.SetErrors(form.ValidationErrors{
		{Index: 0, Field: form.FieldEmail, Kind: form.KindRequired, Message: "Email is required"},
		{Index: 1, Field: form.FieldEmail, Kind: form.KindRequired, Message: "Email is required"},
	})

	list.ReplaceErrorsAt(0, nil)

	if diff := cmp.Diff([]string{"forms[1].email"}, list.Errors().Paths()); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestList_ReconcileReshapesAndClears(t *testing.T) {
	list := form.NewList(validEntry("a@b.com", "Acme", "today"))
	list.SetErrors(form.ValidationErrors{
		{Index: 0, Field: form.FieldVariables, Variable: "date", Kind: form.KindRequired, Message: "Variable is required"},
	})

	list.Reconcile([]string{"company", "invoice"})

	want := form.VariableMap{"company": "Acme", "invoice": ""}
	if diff := cmp.Diff(want, list.Get(0).Variables); diff != "" {
		t.Fatalf("variables mismatch (-want +got):\n%s", diff)
	}
	if errs := list.Errors(); len(errs) != 0 {
		t.Fatalf("expected errors cleared, got %v", errs)
	}
}

func TestList_SetVariableAndEmail(t *testing.T) {
	list := form.NewList(form.Entry{})

	list.SetEmail(0, "a@b.com")
	list.SetVariable(0, "company", "Acme")

	want := form.Entry{Email: "a@b.com", Variables: form.VariableMap{"company": "Acme"}}
	if diff := cmp.Diff(want, list.Get(0)); diff != "" {
		t.Fatalf("entry mismatch (-want +got):\n%s", diff)
	}
}
