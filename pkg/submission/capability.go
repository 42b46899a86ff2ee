package submission

import (
	"context"

	"github.com/goliatone/go-mailmerge/pkg/form"
	"github.com/goliatone/go-mailmerge/pkg/template"
)

// CredentialProvider ensures a sending credential is available. It must
// resolve before any dispatch begins.
type CredentialProvider interface {
	EnsureCredential(ctx context.Context) error
}

// Dispatcher sends a validated batch and reports per-entry results. Results
// must line up one-to-one with Batch.Entries.
type Dispatcher interface {
	Dispatch(ctx context.Context, batch Batch) (Outcome, error)
}

// CredentialFunc adapts a function to CredentialProvider.
type CredentialFunc func(ctx context.Context) error

func (f CredentialFunc) EnsureCredential(ctx context.Context) error {
	return f(ctx)
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(ctx context.Context, batch Batch) (Outcome, error)

func (f DispatchFunc) Dispatch(ctx context.Context, batch Batch) (Outcome, error) {
	return f(ctx, batch)
}

// Batch is the snapshot handed to the dispatcher: the template the entries
// were shaped for and a copy of the validated entries.
type Batch struct {
	ID       string            `json:"id"`
	Template template.Template `json:"template"`
	Entries  []form.Entry      `json:"entries"`
}

// Clone deep copies the batch so collaborators cannot alias caller state.
func (b Batch) Clone() Batch {
	out := b
	out.Template = b.Template.WithVariables(b.Template.Variables...)
	out.Entries = form.CloneEntries(b.Entries)
	return out
}
