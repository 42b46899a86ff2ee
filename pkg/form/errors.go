package form

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStaleSchema signals an entry shaped by a different placeholder set
	// than the schema validating it. It is a programming error, never shown
	// to the user as a field error.
	ErrStaleSchema = errors.New("form: stale schema")
	// ErrInvalidPlaceholder signals an empty or duplicated placeholder name.
	ErrInvalidPlaceholder = errors.New("form: invalid placeholder name")
)

// ErrorKind classifies a validation failure.
type ErrorKind string

const (
	KindRequired        ErrorKind = "required"
	KindInvalidFormat   ErrorKind = "invalid_format"
	KindEmptyCollection ErrorKind = "empty_collection"
)

// CollectionIndex marks errors that belong to the collection rather than an entry.
const CollectionIndex = -1

const (
	FieldEmail     = "email"
	FieldVariables = "variables"
)

const (
	msgEmailRequired   = "Email is required"
	msgEmailInvalid    = "Invalid email"
	msgVariableMissing = "Variable is required"
	msgEmptyCollection = "At least one form is required"
)

// FieldError is a single validation failure keyed to an entry position and a
// field, or to the collection when Index is CollectionIndex.
type FieldError struct {
	Index    int       `json:"index"`
	Field    string    `json:"field,omitempty"`
	Variable string    `json:"variable,omitempty"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
}

// Path renders the dotted path used by presentation layers.
func (e FieldError) Path() string {
	if e.Index == CollectionIndex {
		return "forms"
	}
	switch {
	case e.Field == FieldVariables && e.Variable != "":
		return fmt.Sprintf("forms[%d].variables[%s]", e.Index, e.Variable)
	case e.Field != "":
		return fmt.Sprintf("forms[%d].%s", e.Index, e.Field)
	default:
		return fmt.Sprintf("forms[%d]", e.Index)
	}
}

func (e FieldError) Error() string {
	return e.Path() + ": " + e.Message
}

// ValidationErrors collects every failure found in one validation pass.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	switch len(v) {
	case 0:
		return "form: validation failed"
	case 1:
		return "form: " + v[0].Error()
	default:
		parts := make([]string, 0, len(v))
		for _, fe := range v {
			parts = append(parts, fe.Error())
		}
		return fmt.Sprintf("form: %d validation errors: %s", len(v), strings.Join(parts, "; "))
	}
}

// ForIndex returns the errors attached to a single entry position.
func (v ValidationErrors) ForIndex(index int) ValidationErrors {
	var out ValidationErrors
	for _, fe := range v {
		if fe.Index == index {
			out = append(out, fe)
		}
	}
	return out
}

// Paths lists the field paths in order, one per error.
func (v ValidationErrors) Paths() []string {
	if len(v) == 0 {
		return nil
	}
	out := make([]string, 0, len(v))
	for _, fe := range v {
		out = append(out, fe.Path())
	}
	return out
}

// Has reports whether an error with the given path and kind exists.
func (v ValidationErrors) Has(path string, kind ErrorKind) bool {
	for _, fe := range v {
		if fe.Path() == path && fe.Kind == kind {
			return true
		}
	}
	return false
}

// ErrorMapping splits validation errors into field-level messages keyed by
// path and collection-level messages.
type ErrorMapping struct {
	Fields map[string][]string `json:"fields,omitempty"`
	Form   []string            `json:"form,omitempty"`
}

// Mapping groups the errors for presentation. Messages are trimmed and
// de-duplicated per path while preserving order.
func (v ValidationErrors) Mapping() ErrorMapping {
	mapping := ErrorMapping{Fields: make(map[string][]string)}
	for _, fe := range v {
		if fe.Index == CollectionIndex {
			mapping.Form = append(mapping.Form, fe.Message)
			continue
		}
		path := fe.Path()
		mapping.Fields[path] = append(mapping.Fields[path], fe.Message)
	}
	for path, messages := range mapping.Fields {
		mapping.Fields[path] = normalizeMessages(messages)
	}
	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

// AsValidationErrors extracts ValidationErrors from an error chain.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}

	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))

	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
