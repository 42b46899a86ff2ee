package form

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	fieldRules   *validator.Validate
)

func rules() *validator.Validate {
	validateOnce.Do(func() {
		fieldRules = validator.New(validator.WithRequiredStructEnabled())
	})
	return fieldRules
}

// Schema validates recipient entries against one placeholder snapshot. It is
// immutable once built and safe for concurrent use.
type Schema struct {
	names       []string
	known       map[string]struct{}
	fingerprint string
}

// NewSchema generates the entry schema for names. Names must be non-empty
// and unique; order is preserved and drives error ordering.
func NewSchema(names []string) (*Schema, error) {
	s := &Schema{
		names: make([]string, 0, len(names)),
		known: make(map[string]struct{}, len(names)),
	}
	for idx, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: empty name at index %d", ErrInvalidPlaceholder, idx)
		}
		if _, exists := s.known[name]; exists {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidPlaceholder, name)
		}
		s.known[name] = struct{}{}
		s.names = append(s.names, name)
	}
	s.fingerprint = fingerprint(s.names)
	return s, nil
}

// MustSchema is NewSchema that panics on invalid names.
func MustSchema(names []string) *Schema {
	s, err := NewSchema(names)
	if err != nil {
		panic(err)
	}
	return s
}

// Names returns a copy of the placeholder names in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Fingerprint identifies the placeholder snapshot the schema was built from.
func (s *Schema) Fingerprint() string {
	return s.fingerprint
}

// Matches reports whether names describe the same snapshot.
func (s *Schema) Matches(names []string) bool {
	return s.fingerprint == fingerprint(names)
}

// DefaultVariables is BuildDefaultVariables bound to this schema's snapshot.
func (s *Schema) DefaultVariables() VariableMap {
	return BuildDefaultVariables(s.names)
}

// DefaultEntry returns a fresh empty entry shaped for this schema.
func (s *Schema) DefaultEntry() Entry {
	return Entry{Variables: s.DefaultVariables()}
}

// ValidateEntry checks a single entry. Field failures come back as
// ValidationErrors keyed to index; an entry carrying variables unknown to the
// schema yields ErrStaleSchema instead.
func (s *Schema) ValidateEntry(index int, entry Entry) (ValidationErrors, error) {
	for _, key := range entry.Variables.Keys() {
		if _, ok := s.known[key]; !ok {
			return nil, fmt.Errorf("%w: entry %d carries unknown variable %q", ErrStaleSchema, index, key)
		}
	}

	var out ValidationErrors
	if fe, ok := checkEmail(index, entry.Email); !ok {
		out = append(out, fe)
	}
	for _, name := range s.names {
		value, present := entry.Variables[name]
		if present && strings.TrimSpace(value) != "" {
			continue
		}
		out = append(out, FieldError{
			Index:    index,
			Field:    FieldVariables,
			Variable: name,
			Kind:     KindRequired,
			Message:  msgVariableMissing,
		})
	}
	return out, nil
}

// CheckEmail applies the entry email rule to a single value.
func (s *Schema) CheckEmail(email string) error {
	if fe, ok := checkEmail(0, email); !ok {
		return errors.New(fe.Message)
	}
	return nil
}

// CheckVariable applies the placeholder rule to a single value. Names outside
// the schema fail with ErrStaleSchema.
func (s *Schema) CheckVariable(name, value string) error {
	if _, ok := s.known[name]; !ok {
		return fmt.Errorf("%w: unknown variable %q", ErrStaleSchema, name)
	}
	if strings.TrimSpace(value) == "" {
		return errors.New(msgVariableMissing)
	}
	return nil
}

// Validate checks the whole collection. Every entry is validated and all
// failures are returned together as ValidationErrors; an empty collection
// fails with a single collection-level EmptyCollection error.
func (s *Schema) Validate(entries []Entry) error {
	if len(entries) == 0 {
		return ValidationErrors{{
			Index:   CollectionIndex,
			Kind:    KindEmptyCollection,
			Message: msgEmptyCollection,
		}}
	}

	var all ValidationErrors
	for idx, entry := range entries {
		errs, err := s.ValidateEntry(idx, entry)
		if err != nil {
			return err
		}
		all = append(all, errs...)
	}
	if len(all) == 0 {
		return nil
	}
	return all
}

func checkEmail(index int, email string) (FieldError, bool) {
	trimmed := strings.TrimSpace(email)
	err := rules().Var(trimmed, "required,email")
	if err == nil {
		return FieldError{}, true
	}

	fe := FieldError{Index: index, Field: FieldEmail, Kind: KindInvalidFormat, Message: msgEmailInvalid}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" {
		fe.Kind = KindRequired
		fe.Message = msgEmailRequired
	}
	return fe, false
}

func fingerprint(names []string) string {
	return strings.Join(names, "\x1f") + fmt.Sprintf("\x1e%d", len(names))
}
