package form

// Entry is one recipient: an address plus a value for every placeholder.
type Entry struct {
	Email     string      `json:"email" yaml:"email"`
	Variables VariableMap `json:"variables" yaml:"variables"`
}

// NewEntry builds an empty entry shaped for names.
func NewEntry(names []string) Entry {
	return Entry{Variables: BuildDefaultVariables(names)}
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	return Entry{Email: e.Email, Variables: e.Variables.Clone()}
}

// CloneEntries deep copies a slice of entries.
func CloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	for i, entry := range entries {
		out[i] = entry.Clone()
	}
	return out
}
