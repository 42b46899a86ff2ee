package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-mailmerge/pkg/compose"
	"github.com/goliatone/go-mailmerge/pkg/config"
	"github.com/goliatone/go-mailmerge/pkg/form"
	"github.com/goliatone/go-mailmerge/pkg/prompt"
	"github.com/goliatone/go-mailmerge/pkg/submission"
)

// ErrPartialDelivery signals a completed send where some recipients failed.
var ErrPartialDelivery = errors.New("some emails were not delivered")

func newSendCommand(a *app) *cobra.Command {
	var (
		entriesPath string
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "send <template>",
		Short: "Send a template to a list of recipients",
		Long: `Send renders the template once per recipient and delivers the batch.
With --entries the recipients come from a JSON or YAML file; otherwise an
interactive prompt collects them, asking for a missing Resend API key or
SMTP password first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.mailer()
			if err != nil {
				return err
			}

			if entriesPath == "" {
				s, err := m.NewSession(args[0])
				if err != nil {
					return err
				}
				outcome, err := compose.NewInteractive(a.driver(cmd), s).Run(cmd.Context())
				if errors.Is(err, prompt.ErrAborted) {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled, nothing was sent.")
					return nil
				}
				if err != nil {
					return err
				}
				return partial(outcome)
			}

			entries, err := compose.LoadEntriesFile(entriesPath)
			if err != nil {
				return err
			}
			s, err := m.NewSession(args[0], entries...)
			if err != nil {
				return err
			}
			outcome, err := s.Submit(cmd.Context())
			if err != nil {
				if _, ok := submission.AsError(err); ok {
					return errors.New(s.Banner())
				}
				return describe(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.SuccessNotice())
			fmt.Fprintln(cmd.OutOrStdout(), compose.FormatOutcome(outcome))
			return partial(outcome)
		},
	}
	cmd.Flags().StringVarP(&entriesPath, "entries", "e", "", "JSON or YAML recipients file (- for stdin)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "render and log messages without delivering them")

	a.hook(cmd, func(cmd *cobra.Command, cfg *config.Config) error {
		if dryRun {
			cfg.Transport = "dryrun"
			return nil
		}
		if entriesPath != "" {
			return nil
		}
		return promptCredential(cmd.Context(), a.driver(cmd), cfg)
	})
	return cmd
}

// promptCredential asks for the secret the configured transport needs when
// the configuration does not carry it.
func promptCredential(ctx context.Context, driver prompt.Driver, cfg *config.Config) error {
	var (
		target *string
		label  string
	)
	switch cfg.Transport {
	case "resend":
		target, label = &cfg.Resend.APIKey, "Resend API key"
	case "smtp":
		if cfg.SMTP.Username == "" {
			return nil
		}
		target, label = &cfg.SMTP.Password, fmt.Sprintf("SMTP password for %s", cfg.SMTP.Username)
	default:
		return nil
	}
	if strings.TrimSpace(*target) != "" {
		return nil
	}

	secret, err := driver.Password(ctx, prompt.InputConfig{
		Message: label,
		Validator: func(value string) error {
			if strings.TrimSpace(value) == "" {
				return errors.New("a value is required")
			}
			return nil
		},
	})
	if err != nil {
		return err
	}
	*target = strings.TrimSpace(secret)
	return nil
}

func partial(outcome submission.Outcome) error {
	if outcome.Succeeded || len(outcome.Results) == 0 {
		return nil
	}
	return ErrPartialDelivery
}

// describe prints field errors one per line and returns a summary error.
func describe(cmd *cobra.Command, err error) error {
	verrs, ok := form.AsValidationErrors(err)
	if !ok {
		return err
	}
	out := cmd.ErrOrStderr()
	for _, fe := range verrs {
		fmt.Fprintf(out, "%s: %s\n", fe.Path(), fe.Message)
	}
	return fmt.Errorf("%d validation error(s)", len(verrs))
}
