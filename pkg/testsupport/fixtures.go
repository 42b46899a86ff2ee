package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-mailmerge/pkg/dispatch"
	"github.com/goliatone/go-mailmerge/pkg/form"
	"github.com/goliatone/go-mailmerge/pkg/message"
	"github.com/goliatone/go-mailmerge/pkg/template"
)

// InviteTemplate returns the two-placeholder template most tests share.
func InviteTemplate() template.Template {
	return template.Template{
		ID:        "invite",
		Name:      "Invitation",
		From:      "team@example.com",
		Subject:   "Welcome {{ name }}",
		HTML:      "<p>Hello {{ name }} from {{ company }}</p>",
		Text:      "Hello {{ name }} from {{ company }}",
		Variables: []string{"name", "company"},
	}
}

// Entry builds a form entry for InviteTemplate.
func Entry(email, name, company string) form.Entry {
	return form.Entry{Email: email, Variables: form.VariableMap{"name": name, "company": company}}
}

// MustStore builds a template store or fails the test.
func MustStore(t *testing.T, templates ...template.Template) *template.Store {
	t.Helper()

	store, err := template.NewStore(templates...)
	if err != nil {
		t.Fatalf("template store: %v", err)
	}
	return store
}

// MustComposer builds a composer over the default engine.
func MustComposer(t *testing.T, options ...message.ComposerOption) *message.Composer {
	t.Helper()

	composer, err := message.NewComposer(nil, options...)
	if err != nil {
		t.Fatalf("composer: %v", err)
	}
	return composer
}

// WriteFile writes content under dir and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir fixture dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// Diff returns a cmp diff string if the values differ.
func Diff(want, got any) string {
	return cmp.Diff(want, got)
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}

// RecordingTransport is a dispatch.Transport that records every message and
// fails the recipients listed in Failures.
type RecordingTransport struct {
	TransportName string
	VerifyErr     error
	SendErr       error
	Failures      map[string]error
	// Block, when set, is received from before Send returns.
	Block chan struct{}

	mu       sync.Mutex
	sent     []message.Message
	verified int
}

var _ dispatch.Transport = (*RecordingTransport)(nil)

func (r *RecordingTransport) Name() string {
	if r.TransportName == "" {
		return "recording"
	}
	return r.TransportName
}

func (r *RecordingTransport) Verify(context.Context) error {
	r.mu.Lock()
	r.verified++
	r.mu.Unlock()
	return r.VerifyErr
}

func (r *RecordingTransport) Send(ctx context.Context, msgs []message.Message) ([]dispatch.Result, error) {
	if r.Block != nil {
		select {
		case <-r.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	r.sent = append(r.sent, msgs...)
	r.mu.Unlock()

	if r.SendErr != nil {
		return nil, r.SendErr
	}
	results := make([]dispatch.Result, len(msgs))
	for i, msg := range msgs {
		recipient := strings.ToLower(msg.To)
		if err, ok := r.Failures[recipient]; ok {
			results[i] = dispatch.Result{Err: err}
			continue
		}
		results[i] = dispatch.Result{MessageID: "rec-" + msg.ID}
	}
	return results, nil
}

// Sent returns a copy of the recorded messages.
func (r *RecordingTransport) Sent() []message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]message.Message(nil), r.sent...)
}

// Verified reports how many times Verify ran.
func (r *RecordingTransport) Verified() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.verified
}
