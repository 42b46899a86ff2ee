package message

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// EngineOption configures the pongo2 engine before construction.
type EngineOption func(*engineConfig)

type engineConfig struct {
	partials fs.FS
	globals  map[string]any
	filters  map[string]func(input any, param any) (any, error)
}

// WithPartials lets template sources include or extend files from fsys.
// Without it, include/import/extends/ssi are banned.
func WithPartials(fsys fs.FS) EngineOption {
	return func(cfg *engineConfig) {
		cfg.partials = fsys
	}
}

// WithGlobals seeds values available to every render.
func WithGlobals(data map[string]any) EngineOption {
	return func(cfg *engineConfig) {
		if len(data) == 0 {
			return
		}
		if cfg.globals == nil {
			cfg.globals = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globals[strings.TrimSpace(key)] = value
		}
	}
}

// WithFilter registers a custom filter when the engine is built.
func WithFilter(name string, fn func(input any, param any) (any, error)) EngineOption {
	return func(cfg *engineConfig) {
		if cfg.filters == nil {
			cfg.filters = make(map[string]func(any, any) (any, error))
		}
		cfg.filters[strings.TrimSpace(name)] = fn
	}
}

// Engine renders template sources with pongo2. Compiled sources are cached.
type Engine struct {
	mu    sync.RWMutex
	set   *pongo2.TemplateSet
	cache map[string]*pongo2.Template
}

var sandboxedTags = []string{"include", "import", "extends", "ssi"}

// NewEngine builds an engine.
func NewEngine(options ...EngineOption) (*Engine, error) {
	cfg := &engineConfig{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	loader := cfg.partials
	if loader == nil {
		loader = emptyFS{}
	}
	set := pongo2.NewSet("mailmerge", pongo2.NewFSLoader(loader))
	if cfg.partials == nil {
		for _, tag := range sandboxedTags {
			if err := set.BanTag(tag); err != nil {
				return nil, fmt.Errorf("message: ban tag %q: %w", tag, err)
			}
		}
	}
	for key, value := range cfg.globals {
		if key == "" {
			continue
		}
		set.Globals[key] = value
	}
	for name, fn := range cfg.filters {
		if err := registerFilter(name, fn); err != nil {
			return nil, err
		}
	}

	return &Engine{set: set, cache: make(map[string]*pongo2.Template)}, nil
}

// Render executes source with data. When escape is false the output is not
// HTML-escaped, which is what subjects and plain-text bodies need.
func (e *Engine) Render(source string, data map[string]any, escape bool) (string, error) {
	if e == nil || e.set == nil {
		return "", errors.New("message: engine is nil")
	}
	if source == "" {
		return "", nil
	}
	if !escape {
		source = "{% autoescape off %}" + source + "{% endautoescape %}"
	}

	tmpl, err := e.compile(source)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(pongo2.Context(data), &buf); err != nil {
		return "", fmt.Errorf("message: execute template: %w", err)
	}
	return buf.String(), nil
}

// Check compiles source without executing it.
func (e *Engine) Check(source string) error {
	if source == "" {
		return nil
	}
	_, err := e.compile(source)
	return err
}

func (e *Engine) compile(source string) (*pongo2.Template, error) {
	e.mu.RLock()
	tmpl, ok := e.cache[source]
	e.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if tmpl, ok := e.cache[source]; ok {
		return tmpl, nil
	}
	tmpl, err := e.set.FromString(source)
	if err != nil {
		return nil, fmt.Errorf("message: parse template: %w", err)
	}
	e.cache[source] = tmpl
	return tmpl, nil
}

func registerFilter(name string, fn func(input any, param any) (any, error)) error {
	if name == "" || fn == nil {
		return errors.New("message: filter name and function required")
	}
	if pongo2.FilterExists(name) {
		return nil
	}
	filter := func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var paramVal any
		if param != nil {
			paramVal = param.Interface()
		}
		result, err := fn(in.Interface(), paramVal)
		if err != nil {
			return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: err}
		}
		return pongo2.AsValue(result), nil
	}
	return pongo2.RegisterFilter(name, filter)
}

type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
