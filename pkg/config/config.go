package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-mailmerge/pkg/dispatch/smtp"
)

// EnvPrefix namespaces environment overrides.
const EnvPrefix = "MAILMERGE_"

const (
	defaultTransport     = "dryrun"
	defaultTemplatesDir  = "templates"
	defaultHTTPAddr      = "127.0.0.1:8080"
	defaultLogLevel      = "info"
	defaultLogFormat     = "console"
	defaultCredentialTTL = 5 * time.Minute
)

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the process configuration shared by the CLI and HTTP server.
type Config struct {
	Transport     string        `yaml:"transport"`
	From          string        `yaml:"from"`
	TemplatesDir  string        `yaml:"templates_dir"`
	PartialsDir   string        `yaml:"partials_dir"`
	CredentialTTL time.Duration `yaml:"credential_ttl"`
	Resend        ResendConfig  `yaml:"resend"`
	SMTP          smtp.Config   `yaml:"smtp"`
	HTTP          HTTPConfig    `yaml:"http"`
	Log           LogConfig     `yaml:"log"`
}

// ResendConfig configures the Resend batch transport.
type ResendConfig struct {
	APIKey    string `yaml:"api_key"`
	BatchSize int    `yaml:"batch_size"`
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	Metrics         bool          `yaml:"metrics"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig selects the zap logger flavour.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration that sends nothing and logs to the console.
func Default() Config {
	return Config{
		Transport:     defaultTransport,
		TemplatesDir:  defaultTemplatesDir,
		CredentialTTL: defaultCredentialTTL,
		HTTP:          HTTPConfig{Addr: defaultHTTPAddr, ShutdownTimeout: 10 * time.Second},
		Log:           LogConfig{Level: defaultLogLevel, Format: defaultLogFormat},
	}
}

// Override adjusts a loaded configuration before validation, typically from
// command line flags.
type Override func(*Config)

// Load reads the YAML file at path (optional when empty), then applies the
// .env file, MAILMERGE_* variables and overrides on top of it.
func Load(path string, overrides ...Override) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// A missing .env is the normal case.
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	for _, override := range overrides {
		if override != nil {
			override(&cfg)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, target *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*target = strings.TrimSpace(v)
		}
	}
	str("TRANSPORT", &c.Transport)
	str("FROM", &c.From)
	str("TEMPLATES_DIR", &c.TemplatesDir)
	str("PARTIALS_DIR", &c.PartialsDir)
	str("RESEND_API_KEY", &c.Resend.APIKey)
	str("SMTP_HOST", &c.SMTP.Host)
	str("SMTP_USERNAME", &c.SMTP.Username)
	str("SMTP_PASSWORD", &c.SMTP.Password)
	str("SMTP_TLS", &c.SMTP.TLS)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	// Resend's own SDK convention is honoured when the prefixed key is unset.
	if c.Resend.APIKey == "" {
		if v, ok := lookup("RESEND_API_KEY"); ok {
			c.Resend.APIKey = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup(EnvPrefix + "SMTP_PORT"); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %sSMTP_PORT: %w", EnvPrefix, err)
		}
		c.SMTP.Port = port
	}
	if v, ok := lookup(EnvPrefix + "RESEND_BATCH_SIZE"); ok {
		size, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %sRESEND_BATCH_SIZE: %w", EnvPrefix, err)
		}
		c.Resend.BatchSize = size
	}
	if v, ok := lookup(EnvPrefix + "CREDENTIAL_TTL"); ok {
		ttl, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %sCREDENTIAL_TTL: %w", EnvPrefix, err)
		}
		c.CredentialTTL = ttl
	}
	if v, ok := lookup(EnvPrefix + "HTTP_METRICS"); ok {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %sHTTP_METRICS: %w", EnvPrefix, err)
		}
		c.HTTP.Metrics = enabled
	}
	return nil
}

// Validate checks that the selected transport has what it needs.
func (c Config) Validate() error {
	var problems []string
	switch c.Transport {
	case "dryrun":
	case "resend":
		if c.Resend.APIKey == "" {
			problems = append(problems, "resend.api_key is required for the resend transport")
		}
		if c.Resend.BatchSize < 0 || c.Resend.BatchSize > 100 {
			problems = append(problems, "resend.batch_size must be between 1 and 100")
		}
	case "smtp":
		if c.SMTP.Host == "" {
			problems = append(problems, "smtp.host is required for the smtp transport")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown transport %q", c.Transport))
	}
	if c.TemplatesDir == "" {
		problems = append(problems, "templates_dir is required")
	}
	if c.CredentialTTL < 0 {
		problems = append(problems, "credential_ttl must not be negative")
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
