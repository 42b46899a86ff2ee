package message

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-mailmerge/pkg/form"
	"github.com/goliatone/go-mailmerge/pkg/template"
)

// ErrMissingSender signals a message with neither a template nor a default sender.
var ErrMissingSender = errors.New("message: sender address is required")

// Header names added to every composed message.
const (
	HeaderTemplateID = "X-Mailmerge-Template"
	HeaderBatchID    = "X-Mailmerge-Batch"
)

// Message is one rendered email ready for a transport.
type Message struct {
	ID      string            `json:"id"`
	From    string            `json:"from"`
	To      string            `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html,omitempty"`
	Text    string            `json:"text,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithDefaultFrom sets the sender used when a template has none.
func WithDefaultFrom(from string) ComposerOption {
	return func(c *Composer) {
		c.defaultFrom = strings.TrimSpace(from)
	}
}

// WithRawHTML disables HTML sanitising of rendered bodies.
func WithRawHTML() ComposerOption {
	return func(c *Composer) {
		c.sanitize = false
	}
}

// Composer renders a template once per entry.
type Composer struct {
	engine      *Engine
	defaultFrom string
	sanitize    bool
}

// NewComposer builds a composer. A nil engine gets a sandboxed default.
func NewComposer(engine *Engine, options ...ComposerOption) (*Composer, error) {
	if engine == nil {
		var err error
		engine, err = NewEngine()
		if err != nil {
			return nil, err
		}
	}
	c := &Composer{engine: engine, sanitize: true}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Check validates the template and compiles every source so syntax errors
// surface before a send.
func (c *Composer) Check(tpl template.Template) error {
	if err := tpl.Validate(); err != nil {
		return err
	}
	for name, source := range map[string]string{"subject": tpl.Subject, "html": tpl.HTML, "text": tpl.Text} {
		if err := c.engine.Check(source); err != nil {
			return fmt.Errorf("message: template %q %s: %w", tpl.ID, name, err)
		}
	}
	return nil
}

// Compose renders tpl for a single entry. Placeholder values are exposed to
// the template by name, plus template.RecipientVariable for the address.
func (c *Composer) Compose(tpl template.Template, entry form.Entry) (Message, error) {
	from := strings.TrimSpace(tpl.From)
	if from == "" {
		from = c.defaultFrom
	}
	if from == "" {
		return Message{}, ErrMissingSender
	}

	data := make(map[string]any, len(entry.Variables)+1)
	for name, value := range entry.Variables {
		data[name] = value
	}
	data[template.RecipientVariable] = strings.TrimSpace(entry.Email)

	subject, err := c.engine.Render(tpl.Subject, data, false)
	if err != nil {
		return Message{}, fmt.Errorf("message: render subject: %w", err)
	}
	html, err := c.engine.Render(tpl.HTML, data, true)
	if err != nil {
		return Message{}, fmt.Errorf("message: render html: %w", err)
	}
	text, err := c.engine.Render(tpl.Text, data, false)
	if err != nil {
		return Message{}, fmt.Errorf("message: render text: %w", err)
	}
	if c.sanitize {
		html = SanitizeHTML(html)
	}

	return Message{
		ID:      uuid.NewString(),
		From:    sanitizeHeader(from),
		To:      sanitizeHeader(entry.Email),
		Subject: sanitizeHeader(subject),
		HTML:    html,
		Text:    text,
		Headers: map[string]string{HeaderTemplateID: tpl.ID},
	}, nil
}

// ComposeAll renders every entry in order, tagging each message with batchID.
// The first failure aborts and reports the entry position.
func (c *Composer) ComposeAll(tpl template.Template, batchID string, entries []form.Entry) ([]Message, error) {
	out := make([]Message, 0, len(entries))
	for idx, entry := range entries {
		msg, err := c.Compose(tpl, entry)
		if err != nil {
			return nil, fmt.Errorf("message: entry %d: %w", idx, err)
		}
		if batchID != "" {
			msg.Headers[HeaderBatchID] = batchID
		}
		out = append(out, msg)
	}
	return out, nil
}
