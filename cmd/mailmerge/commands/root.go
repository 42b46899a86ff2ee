package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-mailmerge"
	"github.com/goliatone/go-mailmerge/pkg/config"
	"github.com/goliatone/go-mailmerge/pkg/logging"
	"github.com/goliatone/go-mailmerge/pkg/prompt"
)

// app holds the state shared by every subcommand.
type app struct {
	configPath   string
	templatesDir string
	transport    string
	logLevel     string
	logFormat    string

	cfg    config.Config
	logger *zap.Logger

	hooks  map[*cobra.Command]configHook
	driver func(cmd *cobra.Command) prompt.Driver
}

// configHook adjusts the configuration for one subcommand before validation.
type configHook func(cmd *cobra.Command, cfg *config.Config) error

// NewRootCommand builds the mailmerge command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	if a.driver == nil {
		a.driver = func(cmd *cobra.Command) prompt.Driver {
			return prompt.NewSurveyDriver(prompt.WithOutput(cmd.OutOrStdout()))
		}
	}
	root := &cobra.Command{
		Use:   "mailmerge",
		Short: "Send personalised emails from templates",
		Long: `mailmerge renders one email per recipient from a template with {{ placeholders }}
and sends the batch through Resend, SMTP or a dry-run transport.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&a.templatesDir, "templates", "t", "", "templates directory (overrides config)")
	flags.StringVar(&a.transport, "transport", "", "transport: dryrun, resend or smtp (overrides config)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (overrides config)")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: console or json (overrides config)")

	root.AddCommand(
		newTemplatesCommand(a),
		newSchemaCommand(a),
		newPreviewCommand(a),
		newSendCommand(a),
		newServeCommand(a),
	)
	return root
}

func (a *app) hook(cmd *cobra.Command, fn configHook) {
	if a.hooks == nil {
		a.hooks = make(map[*cobra.Command]configHook)
	}
	a.hooks[cmd] = fn
}

func (a *app) load(cmd *cobra.Command) error {
	overrides := []config.Override{a.flagOverrides}
	var hookErr error
	if fn := a.hooks[cmd]; fn != nil {
		overrides = append(overrides, func(cfg *config.Config) {
			hookErr = fn(cmd, cfg)
		})
	}

	cfg, err := config.Load(a.configPath, overrides...)
	if hookErr != nil {
		return hookErr
	}
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func (a *app) flagOverrides(cfg *config.Config) {
	if a.templatesDir != "" {
		cfg.TemplatesDir = a.templatesDir
	}
	if a.transport != "" {
		cfg.Transport = a.transport
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
}

func (a *app) mailer(options ...mailmerge.Option) (*mailmerge.Mailer, error) {
	options = append([]mailmerge.Option{mailmerge.WithLogger(a.logger)}, options...)
	m, err := mailmerge.New(a.cfg, options...)
	if err != nil {
		return nil, fmt.Errorf("mailmerge: %w", err)
	}
	return m, nil
}
