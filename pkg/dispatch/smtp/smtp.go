package smtp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/goliatone/go-mailmerge/pkg/dispatch"
	"github.com/goliatone/go-mailmerge/pkg/message"
)

// Name is the registry name of the SMTP transport.
const Name = "smtp"

// ErrMissingHost signals a transport configured without a server.
var ErrMissingHost = errors.New("smtp: host is required")

// Config holds the SMTP server settings.
type Config struct {
	Host     string        `yaml:"host" json:"host"`
	Port     int           `yaml:"port" json:"port"`
	Username string        `yaml:"username" json:"username"`
	Password string        `yaml:"password" json:"-"`
	TLS      string        `yaml:"tls" json:"tls"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// Client is the subset of *mail.Client the transport uses.
type Client interface {
	DialWithContext(ctx context.Context) error
	Close() error
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClient swaps the SMTP client, mainly for tests.
func WithClient(client Client) Option {
	return func(t *Transport) {
		if client != nil {
			t.client = client
		}
	}
}

// Transport delivers each message over one SMTP session per send.
type Transport struct {
	client Client
	logger *zap.Logger
}

var _ dispatch.Transport = (*Transport)(nil)

// New builds a transport from cfg.
func New(cfg Config, options ...Option) (*Transport, error) {
	t := &Transport{logger: zap.NewNop()}
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}
	if t.client != nil {
		return t, nil
	}

	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, ErrMissingHost
	}
	opts := []mail.Option{mail.WithTLSPortPolicy(tlsPolicy(cfg.TLS))}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp: create client: %w", err)
	}
	t.client = client
	return t, nil
}

func tlsPolicy(value string) mail.TLSPolicy {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none", "off":
		return mail.NoTLS
	case "opportunistic":
		return mail.TLSOpportunistic
	default:
		return mail.TLSMandatory
	}
}

func (t *Transport) Name() string { return Name }

// Verify dials and authenticates, then closes the connection.
func (t *Transport) Verify(ctx context.Context) error {
	if err := t.client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp: verify credentials: %w", err)
	}
	if err := t.client.Close(); err != nil {
		t.logger.Debug("smtp close after verify failed", zap.Error(err))
	}
	return nil
}

// Send builds one MIME message per input and delivers them in a single
// session. Per-message failures are read back from each message; a failure
// that touched no message (dial, auth) fails the whole call.
func (t *Transport) Send(ctx context.Context, msgs []message.Message) ([]dispatch.Result, error) {
	results := make([]dispatch.Result, len(msgs))
	outgoing := make([]*mail.Msg, 0, len(msgs))
	positions := make([]int, 0, len(msgs))

	for i, msg := range msgs {
		m, err := buildMsg(msg)
		if err != nil {
			results[i] = dispatch.Result{Err: err}
			continue
		}
		outgoing = append(outgoing, m)
		positions = append(positions, i)
	}
	if len(outgoing) == 0 {
		return results, nil
	}

	sendErr := t.client.DialAndSendWithContext(ctx, outgoing...)
	perMessage := false
	for j, m := range outgoing {
		idx := positions[j]
		if m.HasSendError() {
			perMessage = true
			results[idx] = dispatch.Result{Err: m.SendError()}
			continue
		}
		results[idx] = dispatch.Result{MessageID: msgs[idx].ID}
	}
	if sendErr != nil && !perMessage {
		return nil, fmt.Errorf("smtp: send: %w", sendErr)
	}
	if sendErr != nil {
		t.logger.Warn("smtp send completed with failures", zap.Error(sendErr))
	}
	return results, nil
}

func buildMsg(msg message.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("smtp: invalid sender %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("smtp: invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	if msg.ID != "" {
		m.SetMessageIDWithValue(msg.ID + "@mailmerge")
	}
	m.SetBulk()
	for name, value := range msg.Headers {
		m.SetGenHeader(mail.Header(name), value)
	}

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	case msg.HTML != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
	}
	return m, nil
}
