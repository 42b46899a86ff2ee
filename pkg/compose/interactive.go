package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-mailmerge/pkg/form"
	"github.com/goliatone/go-mailmerge/pkg/prompt"
	"github.com/goliatone/go-mailmerge/pkg/session"
	"github.com/goliatone/go-mailmerge/pkg/submission"
)

// Menu actions, in display order.
const (
	ActionEdit   = "Edit entry"
	ActionAdd    = "Add entry"
	ActionRemove = "Remove entry"
	ActionSend   = "Send"
	ActionCancel = "Cancel"
)

var actions = []string{ActionEdit, ActionAdd, ActionRemove, ActionSend, ActionCancel}

// Interactive drives a session from a terminal: the user edits entries until
// the send validates and completes, or cancels.
type Interactive struct {
	driver  prompt.Driver
	session *session.Session
}

// NewInteractive binds a prompt driver to a session.
func NewInteractive(driver prompt.Driver, s *session.Session) *Interactive {
	return &Interactive{driver: driver, session: s}
}

// Run loops over the action menu. It returns the outcome of the first
// completed send, prompt.ErrAborted when the user cancels, or the failure the
// user chose not to retry.
func (c *Interactive) Run(ctx context.Context) (submission.Outcome, error) {
	for {
		if err := c.info(ctx, c.summary()); err != nil {
			return submission.Outcome{}, err
		}

		choice, err := c.driver.Select(ctx, prompt.SelectConfig{Message: "What next?", Options: actions, DefaultIndex: 0})
		if err != nil {
			return submission.Outcome{}, err
		}
		if choice < 0 || choice >= len(actions) {
			continue
		}

		switch actions[choice] {
		case ActionEdit:
			idx, ok, err := c.pickEntry(ctx, "Edit which entry?")
			if err != nil {
				return submission.Outcome{}, err
			}
			if ok {
				if err := c.editEntry(ctx, idx); err != nil {
					return submission.Outcome{}, err
				}
			}
		case ActionAdd:
			idx := c.session.Add()
			if err := c.editEntry(ctx, idx); err != nil {
				return submission.Outcome{}, err
			}
		case ActionRemove:
			idx, ok, err := c.pickEntry(ctx, "Remove which entry?")
			if err != nil {
				return submission.Outcome{}, err
			}
			if ok {
				c.session.Remove(idx)
			}
		case ActionSend:
			outcome, done, err := c.send(ctx)
			if done {
				return outcome, err
			}
		case ActionCancel:
			return submission.Outcome{}, prompt.ErrAborted
		}
	}
}

func (c *Interactive) summary() string {
	entries := c.session.Entries()
	var b strings.Builder
	fmt.Fprintf(&b, "Template %q: %d recipient(s)", c.session.Template().ID, len(entries))
	for i, entry := range entries {
		fmt.Fprintf(&b, "\n  %s", entryLabel(i, entry))
	}
	return b.String()
}

func entryLabel(index int, entry form.Entry) string {
	email := strings.TrimSpace(entry.Email)
	if email == "" {
		email = "(no email)"
	}
	return fmt.Sprintf("#%d %s", index+1, email)
}

func (c *Interactive) pickEntry(ctx context.Context, message string) (int, bool, error) {
	entries := c.session.Entries()
	if len(entries) == 0 {
		return 0, false, c.info(ctx, "No entries yet.")
	}
	options := make([]string, len(entries))
	for i, entry := range entries {
		options[i] = entryLabel(i, entry)
	}
	idx, err := c.driver.Select(ctx, prompt.SelectConfig{Message: message, Options: options})
	if err != nil {
		return 0, false, err
	}
	if idx < 0 || idx >= len(entries) {
		return 0, false, nil
	}
	return idx, true, nil
}

func (c *Interactive) editEntry(ctx context.Context, index int) error {
	entry := c.session.Entry(index)
	schema := c.session.Schema()

	email, err := c.driver.Input(ctx, prompt.InputConfig{
		Message:   fmt.Sprintf("Email for entry #%d", index+1),
		Default:   entry.Email,
		Validator: schema.CheckEmail,
	})
	if err != nil {
		return err
	}
	c.session.SetEmail(index, strings.TrimSpace(email))

	for _, name := range c.session.Template().PlaceholderNames() {
		value, err := c.driver.Input(ctx, prompt.InputConfig{
			Message: fmt.Sprintf("%s for entry #%d", name, index+1),
			Default: entry.Variables[name],
			Validator: func(value string) error {
				return schema.CheckVariable(name, value)
			},
		})
		if err != nil {
			return err
		}
		if err := c.session.SetVariable(index, name, value); err != nil {
			return err
		}
	}
	return nil
}

// send returns done=true when the loop should stop.
func (c *Interactive) send(ctx context.Context) (submission.Outcome, bool, error) {
	count := c.session.Len()
	ok, err := c.driver.Confirm(ctx, prompt.ConfirmConfig{Message: fmt.Sprintf("Send to %d recipient(s)?", count), Default: true})
	if err != nil {
		return submission.Outcome{}, true, err
	}
	if !ok {
		return submission.Outcome{}, false, nil
	}

	outcome, err := c.session.Submit(ctx)
	if err == nil {
		return outcome, true, c.info(ctx, c.session.SuccessNotice()+"\n"+FormatOutcome(outcome))
	}

	if verrs, ok := form.AsValidationErrors(err); ok {
		lines := []string{"Please fix the following:"}
		for _, fe := range verrs {
			lines = append(lines, "  "+fe.Path()+": "+fe.Message)
		}
		return submission.Outcome{}, false, c.info(ctx, strings.Join(lines, "\n"))
	}

	var failure *submission.Error
	if !errors.As(err, &failure) {
		return submission.Outcome{}, true, err
	}
	if infoErr := c.info(ctx, "Error: "+c.session.Banner()); infoErr != nil {
		return submission.Outcome{}, true, infoErr
	}
	retry, promptErr := c.driver.Confirm(ctx, prompt.ConfirmConfig{Message: "Go back and try again?", Default: true})
	if promptErr != nil {
		return submission.Outcome{}, true, promptErr
	}
	if retry {
		return submission.Outcome{}, false, nil
	}
	return submission.Outcome{}, true, err
}

func (c *Interactive) info(ctx context.Context, msg string) error {
	return c.driver.Info(ctx, msg)
}

// FormatOutcome renders per-entry results as plain text lines.
func FormatOutcome(outcome submission.Outcome) string {
	succeeded, failed := outcome.Counts()
	var b strings.Builder
	fmt.Fprintf(&b, "%d sent, %d failed", succeeded, failed)
	for _, result := range outcome.Results {
		status := "ok"
		if !result.Succeeded {
			status = "failed"
		}
		fmt.Fprintf(&b, "\n  %s: %s", result.Email, status)
		if result.Message != "" {
			fmt.Fprintf(&b, " (%s)", result.Message)
		}
	}
	return b.String()
}
