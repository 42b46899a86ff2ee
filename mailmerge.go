package mailmerge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/goliatone/go-mailmerge/pkg/config"
	"github.com/goliatone/go-mailmerge/pkg/credential"
	"github.com/goliatone/go-mailmerge/pkg/dispatch"
	"github.com/goliatone/go-mailmerge/pkg/dispatch/resend"
	"github.com/goliatone/go-mailmerge/pkg/dispatch/smtp"
	"github.com/goliatone/go-mailmerge/pkg/form"
	"github.com/goliatone/go-mailmerge/pkg/httpapi"
	"github.com/goliatone/go-mailmerge/pkg/message"
	"github.com/goliatone/go-mailmerge/pkg/session"
	"github.com/goliatone/go-mailmerge/pkg/submission"
	"github.com/goliatone/go-mailmerge/pkg/template"
)

// Template aliases template.Template for callers of the root package.
type Template = template.Template

// Entry aliases form.Entry.
type Entry = form.Entry

// Outcome aliases submission.Outcome.
type Outcome = submission.Outcome

// ErrUnknownTemplate signals a template id missing from the store.
var ErrUnknownTemplate = errors.New("mailmerge: unknown template")

// Option customises a Mailer.
type Option func(*Mailer)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Mailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTemplates replaces the configured templates directory.
func WithTemplates(fsys fs.FS) Option {
	return func(m *Mailer) {
		m.templates = fsys
	}
}

// WithTransport registers transport and selects it regardless of config.
func WithTransport(transport dispatch.Transport) Option {
	return func(m *Mailer) {
		m.transport = transport
	}
}

// WithMetrics forwards attempt metrics to every orchestrator the mailer builds.
func WithMetrics(metrics submission.Metrics) Option {
	return func(m *Mailer) {
		m.metrics = metrics
	}
}

// Mailer wires templates, rendering, the selected transport and credential
// checks from a single configuration.
type Mailer struct {
	cfg       config.Config
	logger    *zap.Logger
	templates fs.FS
	transport dispatch.Transport
	metrics   submission.Metrics

	store    *template.Store
	composer *message.Composer
	registry *dispatch.Registry
	service  *dispatch.Service
}

// New builds a Mailer from cfg.
func New(cfg config.Config, options ...Option) (*Mailer, error) {
	m := &Mailer{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range options {
		if opt != nil {
			opt(m)
		}
	}

	if m.templates == nil {
		m.templates = m.templatesFS()
	}
	store, err := template.LoadFS(m.templates)
	if err != nil {
		return nil, err
	}
	m.store = store

	var engineOptions []message.EngineOption
	if cfg.PartialsDir != "" {
		engineOptions = append(engineOptions, message.WithPartials(os.DirFS(cfg.PartialsDir)))
	}
	engine, err := message.NewEngine(engineOptions...)
	if err != nil {
		return nil, err
	}
	composer, err := message.NewComposer(engine, message.WithDefaultFrom(cfg.From))
	if err != nil {
		return nil, err
	}
	for _, id := range store.IDs() {
		tpl, _ := store.Get(id)
		if err := composer.Check(tpl); err != nil {
			return nil, err
		}
	}
	m.composer = composer

	m.registry = dispatch.NewRegistry()
	m.registry.MustRegister(dispatch.NewDryRun(m.logger.Named("dryrun")))

	name := cfg.Transport
	if m.transport != nil {
		if err := m.registry.Register(m.transport); err != nil {
			return nil, err
		}
		name = m.transport.Name()
	} else if name != dispatch.DryRunName {
		transport, err := m.buildTransport()
		if err != nil {
			return nil, err
		}
		if err := m.registry.Register(transport); err != nil {
			return nil, err
		}
	}

	transport, err := m.registry.Get(name)
	if err != nil {
		return nil, err
	}
	checker := credential.NewCached(m.credentialCheck(transport), cfg.CredentialTTL,
		credential.WithLogger(m.logger.Named("credential")))
	service, err := dispatch.NewService(transport, composer,
		dispatch.WithLogger(m.logger.Named("dispatch")),
		dispatch.WithCredentialChecker(checker),
	)
	if err != nil {
		return nil, err
	}
	m.service = service

	m.logger.Info("mailmerge ready",
		zap.String("transport", transport.Name()),
		zap.Strings("templates", store.IDs()),
	)
	return m, nil
}

func (m *Mailer) templatesFS() fs.FS {
	dir := m.cfg.TemplatesDir
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return os.DirFS(dir)
	}
	m.logger.Info("templates directory not found, using bundled templates", zap.String("dir", dir))
	return EmbeddedTemplates()
}

func (m *Mailer) buildTransport() (dispatch.Transport, error) {
	switch m.cfg.Transport {
	case resend.Name:
		options := []resend.Option{resend.WithLogger(m.logger.Named("resend"))}
		if m.cfg.Resend.BatchSize > 0 {
			options = append(options, resend.WithBatchSize(m.cfg.Resend.BatchSize))
		}
		transport, err := resend.New(m.cfg.Resend.APIKey, options...)
		if err != nil {
			return nil, err
		}
		return transport, nil
	case smtp.Name:
		transport, err := smtp.New(m.cfg.SMTP, smtp.WithLogger(m.logger.Named("smtp")))
		if err != nil {
			return nil, err
		}
		return transport, nil
	default:
		return nil, fmt.Errorf("mailmerge: unsupported transport %q", m.cfg.Transport)
	}
}

// credentialCheck fails fast on a missing secret before asking the provider.
func (m *Mailer) credentialCheck(transport dispatch.Transport) submission.CredentialProvider {
	verify := submission.CredentialFunc(transport.Verify)
	switch transport.Name() {
	case resend.Name:
		return credential.Chain{credential.NewStatic("resend api key", m.cfg.Resend.APIKey), verify}
	default:
		return verify
	}
}

// Store returns the loaded templates.
func (m *Mailer) Store() *template.Store {
	return m.store
}

// Template looks up a template by id.
func (m *Mailer) Template(id string) (Template, error) {
	tpl, ok := m.store.Get(id)
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	return tpl, nil
}

// Transports lists the registered transport names.
func (m *Mailer) Transports() []string {
	return m.registry.List()
}

// Transport returns the transport sends go through.
func (m *Mailer) Transport() dispatch.Transport {
	return m.service.Transport()
}

// Schema returns the entry schema for a template.
func (m *Mailer) Schema(id string) (*form.Schema, error) {
	tpl, err := m.Template(id)
	if err != nil {
		return nil, err
	}
	return form.NewSchema(tpl.PlaceholderNames())
}

func (m *Mailer) orchestratorOptions() []submission.Option {
	options := []submission.Option{submission.WithLogger(m.logger.Named("submission"))}
	if m.metrics != nil {
		options = append(options, submission.WithMetrics(m.metrics))
	}
	return options
}

// NewSession opens an editing session for the template. Entries, when given,
// seed the list instead of a single blank entry.
func (m *Mailer) NewSession(id string, entries ...Entry) (*session.Session, error) {
	tpl, err := m.Template(id)
	if err != nil {
		return nil, err
	}
	options := []session.Option{
		session.WithLogger(m.logger.Named("session")),
		session.WithOrchestratorOptions(m.orchestratorOptions()...),
	}
	if len(entries) > 0 {
		options = append(options, session.WithEntries(entries...))
	}
	return session.New(tpl, m.service, m.service, options...)
}

// Preview renders every entry without sending. Entries are validated first so
// a preview fails the same way a send would.
func (m *Mailer) Preview(id string, entries []Entry) ([]message.Message, error) {
	tpl, err := m.Template(id)
	if err != nil {
		return nil, err
	}
	schema, err := form.NewSchema(tpl.PlaceholderNames())
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(form.CloneEntries(entries)); err != nil {
		return nil, err
	}
	return m.composer.ComposeAll(tpl, "preview", entries)
}

// HTTPServer builds the HTTP API over the same templates and transport.
func (m *Mailer) HTTPServer(options ...httpapi.Option) (*httpapi.Server, error) {
	base := []httpapi.Option{
		httpapi.WithLogger(m.logger.Named("http")),
		httpapi.WithOrchestratorOptions(m.orchestratorOptions()...),
	}
	return httpapi.New(m.store, m.service, m.service, append(base, options...)...)
}
