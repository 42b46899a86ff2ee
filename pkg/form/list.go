package form

import (
	"fmt"

	"github.com/google/uuid"
)

// List is the ordered, mutable collection of recipient entries. Each entry
// gets a stable internal id on insertion; positions exposed to callers are
// derived from the current order, so errors recorded against an entry follow
// it when earlier entries are removed.
//
// List is not safe for concurrent use; the session serialises access.
type List struct {
	order      []uuid.UUID
	entries    map[uuid.UUID]*Entry
	errors     map[uuid.UUID]ValidationErrors
	formErrors ValidationErrors
}

// NewList seeds a list with deep copies of entries.
func NewList(entries ...Entry) *List {
	l := &List{
		entries: make(map[uuid.UUID]*Entry, len(entries)),
		errors:  make(map[uuid.UUID]ValidationErrors),
	}
	for _, entry := range entries {
		l.Append(entry)
	}
	return l
}

// Len reports the number of entries.
func (l *List) Len() int {
	return len(l.order)
}

// Append stores a copy of entry at the end and returns its position. Any
// collection-level error is cleared since the list is no longer empty.
func (l *List) Append(entry Entry) int {
	id := uuid.New()
	clone := entry.Clone()
	if clone.Variables == nil {
		clone.Variables = VariableMap{}
	}
	l.entries[id] = &clone
	l.order = append(l.order, id)
	delete(l.errors, id)
	l.formErrors = nil
	return len(l.order) - 1
}

// Remove deletes the entry at index; later entries shift down by one. The
// removed entry's errors go with it. An out-of-range index panics.
func (l *List) Remove(index int) {
	id := l.mustID(index)
	delete(l.entries, id)
	delete(l.errors, id)
	l.order = append(l.order[:index], l.order[index+1:]...)
}

// Get returns a copy of the entry at index. An out-of-range index panics.
func (l *List) Get(index int) Entry {
	return l.entries[l.mustID(index)].Clone()
}

// All returns copies of every entry in order.
func (l *List) All() []Entry {
	out := make([]Entry, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.entries[id].Clone())
	}
	return out
}

// ID returns the stable id of the entry at index.
func (l *List) ID(index int) uuid.UUID {
	return l.mustID(index)
}

// IndexOf resolves a stable id to its current position.
func (l *List) IndexOf(id uuid.UUID) (int, bool) {
	for idx, candidate := range l.order {
		if candidate == id {
			return idx, true
		}
	}
	return -1, false
}

// SetEmail updates the address of the entry at index in place.
func (l *List) SetEmail(index int, email string) {
	l.entries[l.mustID(index)].Email = email
}

// SetVariable updates one placeholder value of the entry at index in place.
func (l *List) SetVariable(index int, name, value string) {
	entry := l.entries[l.mustID(index)]
	if entry.Variables == nil {
		entry.Variables = VariableMap{}
	}
	entry.Variables[name] = value
}

// Reset replaces every entry and drops all recorded errors.
func (l *List) Reset(entries []Entry) {
	l.order = nil
	l.entries = make(map[uuid.UUID]*Entry, len(entries))
	l.ClearErrors()
	for _, entry := range entries {
		l.Append(entry)
	}
}

// Reconcile reshapes every entry's variables to names and drops recorded
// errors, which were computed against the previous placeholder set.
func (l *List) Reconcile(names []string) {
	for _, id := range l.order {
		entry := l.entries[id]
		entry.Variables = entry.Variables.Reshape(names)
	}
	l.ClearErrors()
}

// SetErrors replaces every recorded error. Positional errors are re-keyed to
// the stable id of the entry currently at that position; errors pointing at
// positions that do not exist are dropped.
func (l *List) SetErrors(errs ValidationErrors) {
	l.ClearErrors()
	for _, fe := range errs {
		if fe.Index == CollectionIndex {
			l.formErrors = append(l.formErrors, fe)
			continue
		}
		if fe.Index < 0 || fe.Index >= len(l.order) {
			continue
		}
		id := l.order[fe.Index]
		l.errors[id] = append(l.errors[id], fe)
	}
}

// ReplaceErrorsAt swaps the errors recorded for one entry, leaving the rest
// untouched.
func (l *List) ReplaceErrorsAt(index int, errs ValidationErrors) {
	id := l.mustID(index)
	delete(l.errors, id)
	for _, fe := range errs {
		if fe.Index != index {
			continue
		}
		l.errors[id] = append(l.errors[id], fe)
	}
}

// Errors returns every recorded error with positions derived from the
// current order: collection-level errors first, then entries in order.
func (l *List) Errors() ValidationErrors {
	var out ValidationErrors
	out = append(out, l.formErrors...)
	for idx := range l.order {
		out = append(out, l.ErrorsAt(idx)...)
	}
	return out
}

// ErrorsAt returns the errors of the entry currently at index.
func (l *List) ErrorsAt(index int) ValidationErrors {
	recorded := l.errors[l.mustID(index)]
	if len(recorded) == 0 {
		return nil
	}
	out := make(ValidationErrors, len(recorded))
	for i, fe := range recorded {
		fe.Index = index
		out[i] = fe
	}
	return out
}

// FormErrors returns the collection-level errors.
func (l *List) FormErrors() ValidationErrors {
	return append(ValidationErrors(nil), l.formErrors...)
}

// ClearErrors drops every recorded error.
func (l *List) ClearErrors() {
	l.errors = make(map[uuid.UUID]ValidationErrors)
	l.formErrors = nil
}

func (l *List) mustID(index int) uuid.UUID {
	if index < 0 || index >= len(l.order) {
		panic(fmt.Sprintf("form: entry index %d out of range [0:%d]", index, len(l.order)))
	}
	return l.order[index]
}
