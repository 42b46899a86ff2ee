package compose

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-mailmerge/pkg/form"
)

// ErrNoEntries signals an entries document that holds no recipients.
var ErrNoEntries = errors.New("compose: entries document is empty")

// entriesDocument accepts either a bare list or the `{"forms": [...]}` shape
// used by the HTTP API.
type entriesDocument struct {
	Forms []form.Entry `json:"forms" yaml:"forms"`
}

// ParseEntries decodes recipient entries from JSON or YAML.
func ParseEntries(data []byte) ([]form.Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrNoEntries
	}

	var list []form.Entry
	if err := json.Unmarshal(trimmed, &list); err == nil {
		return normaliseEntries(list)
	}
	var doc entriesDocument
	if err := json.Unmarshal(trimmed, &doc); err == nil {
		return normaliseEntries(doc.Forms)
	}
	if err := yaml.Unmarshal(trimmed, &list); err == nil {
		return normaliseEntries(list)
	}
	if err := yaml.Unmarshal(trimmed, &doc); err == nil {
		return normaliseEntries(doc.Forms)
	}
	return nil, errors.New("compose: entries are not valid JSON or YAML")
}

// ReadEntries reads and decodes entries from r.
func ReadEntries(r io.Reader) ([]form.Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compose: read entries: %w", err)
	}
	return ParseEntries(data)
}

// LoadEntriesFile decodes entries from path; "-" reads stdin.
func LoadEntriesFile(path string) ([]form.Entry, error) {
	if path == "-" {
		return ReadEntries(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compose: read entries %s: %w", path, err)
	}
	entries, err := ParseEntries(data)
	if err != nil {
		return nil, fmt.Errorf("%w (file %s)", err, path)
	}
	return entries, nil
}

func normaliseEntries(entries []form.Entry) ([]form.Entry, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	for i := range entries {
		if entries[i].Variables == nil {
			entries[i].Variables = form.VariableMap{}
		}
	}
	return entries, nil
}
