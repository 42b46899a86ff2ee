package template

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrTemplateIDMissing signals a template without an identifier.
	ErrTemplateIDMissing = errors.New("template: id is required")
	// ErrInvalidVariable signals an empty, malformed, or duplicated placeholder name.
	ErrInvalidVariable = errors.New("template: invalid variable")
)

// RecipientVariable is the name under which the recipient address is exposed
// to template sources. It cannot be declared as a placeholder.
const RecipientVariable = "email"

var (
	identifierPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?:\|[^}]*)?\}\}`)
)

// Template is the already-loaded value handed to the form layer. Variables is
// the ordered placeholder set; when a document omits it, Placeholders derives
// the set from the subject and bodies.
type Template struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	From      string   `json:"from,omitempty" yaml:"from,omitempty"`
	Subject   string   `json:"subject" yaml:"subject"`
	HTML      string   `json:"html,omitempty" yaml:"html,omitempty"`
	Text      string   `json:"text,omitempty" yaml:"text,omitempty"`
	Variables []string `json:"variables" yaml:"variables"`
}

// Validate checks the template identity and its placeholder set. Names must be
// unique identifiers so they can be referenced from the template sources.
func (t Template) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrTemplateIDMissing
	}
	seen := make(map[string]struct{}, len(t.Variables))
	for idx, name := range t.Variables {
		if name == "" {
			return fmt.Errorf("%w: empty name at index %d", ErrInvalidVariable, idx)
		}
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("%w: %q is not an identifier", ErrInvalidVariable, name)
		}
		if name == RecipientVariable {
			return fmt.Errorf("%w: %q is reserved for the recipient address", ErrInvalidVariable, name)
		}
		if _, exists := seen[name]; exists {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidVariable, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// PlaceholderNames returns a copy of the declared variables.
func (t Template) PlaceholderNames() []string {
	if len(t.Variables) == 0 {
		return nil
	}
	out := make([]string, len(t.Variables))
	copy(out, t.Variables)
	return out
}

// Placeholders scans subject, HTML and text (in that order) for `{{ name }}`
// tokens and returns the names in order of first appearance. The recipient
// variable is filled per message and never reported.
func (t Template) Placeholders() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, source := range []string{t.Subject, t.HTML, t.Text} {
		for _, match := range placeholderPattern.FindAllStringSubmatch(source, -1) {
			name := match[1]
			if name == RecipientVariable {
				continue
			}
			if _, exists := seen[name]; exists {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// WithVariables returns a copy of the template using the provided names.
func (t Template) WithVariables(names ...string) Template {
	out := t
	out.Variables = append([]string(nil), names...)
	return out
}
