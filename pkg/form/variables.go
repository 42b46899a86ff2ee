package form

import "sort"

// VariableMap maps placeholder name to the entry's value for it.
type VariableMap map[string]string

// BuildDefaultVariables returns a map holding every placeholder name bound to
// the empty string. It is pure; callers recompute it whenever the placeholder
// set changes.
func BuildDefaultVariables(names []string) VariableMap {
	out := make(VariableMap, len(names))
	for _, name := range names {
		out[name] = ""
	}
	return out
}

// Clone returns an independent copy of the map.
func (m VariableMap) Clone() VariableMap {
	if m == nil {
		return nil
	}
	out := make(VariableMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Keys returns the map keys sorted lexically.
func (m VariableMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reshape returns a copy holding exactly names: surviving values are kept,
// new names start empty, names outside the set are dropped.
func (m VariableMap) Reshape(names []string) VariableMap {
	out := BuildDefaultVariables(names)
	for _, name := range names {
		if value, ok := m[name]; ok {
			out[name] = value
		}
	}
	return out
}
