package template

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store keeps the parsed templates keyed by id. It is safe for concurrent
// readers when treated as immutable after construction.
type Store struct {
	templates map[string]Template
}

// NewStore builds a store from already-constructed templates.
func NewStore(templates ...Template) (*Store, error) {
	store := &Store{templates: make(map[string]Template, len(templates))}
	for _, tpl := range templates {
		if err := store.add(tpl, "memory"); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// LoadFS walks the provided filesystem and parses JSON/YAML template files.
// A file may hold a single template or a `templates` list. When fsys is nil
// the returned store is empty.
func LoadFS(fsys fs.FS) (*Store, error) {
	store := &Store{templates: make(map[string]Template)}
	if fsys == nil {
		return store, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		if !isTemplateFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("template: read %s: %w", path, err)
		}

		doc, err := parseDocument(data, path)
		if err != nil {
			return err
		}

		for _, tpl := range doc.all() {
			if err := store.add(tpl, path); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return store, nil
}

// Get returns the template registered under id.
func (s *Store) Get(id string) (Template, bool) {
	if s == nil {
		return Template{}, false
	}
	tpl, ok := s.templates[strings.TrimSpace(id)]
	return tpl, ok
}

// IDs returns the sorted template identifiers.
func (s *Store) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Empty reports whether the store holds any templates.
func (s *Store) Empty() bool {
	return s == nil || len(s.templates) == 0
}

func (s *Store) add(tpl Template, source string) error {
	tpl = normaliseTemplate(tpl)
	if err := tpl.Validate(); err != nil {
		return fmt.Errorf("template: file %s: %w", source, err)
	}
	if _, exists := s.templates[tpl.ID]; exists {
		return fmt.Errorf("template: duplicate template %q (file %s)", tpl.ID, source)
	}
	s.templates[tpl.ID] = tpl
	return nil
}

type documentFile struct {
	Template  `json:",inline" yaml:",inline"`
	Templates []Template `json:"templates" yaml:"templates"`
}

func (d documentFile) all() []Template {
	if len(d.Templates) > 0 {
		return d.Templates
	}
	if strings.TrimSpace(d.ID) == "" && d.Subject == "" && d.HTML == "" && d.Text == "" {
		return nil
	}
	return []Template{d.Template}
}

func parseDocument(data []byte, source string) (documentFile, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return documentFile{}, fmt.Errorf("template: file %s is empty", source)
	}

	var doc documentFile
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}

	doc = documentFile{}
	if err := yaml.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}

	return documentFile{}, fmt.Errorf("template: parse %s: invalid JSON or YAML", source)
}

func normaliseTemplate(tpl Template) Template {
	tpl.ID = strings.TrimSpace(tpl.ID)
	tpl.Name = strings.TrimSpace(tpl.Name)
	if tpl.Name == "" {
		tpl.Name = tpl.ID
	}
	if len(tpl.Variables) == 0 {
		tpl.Variables = tpl.Placeholders()
	} else {
		tpl.Variables = append([]string(nil), tpl.Variables...)
	}
	return tpl
}

func isTemplateFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
