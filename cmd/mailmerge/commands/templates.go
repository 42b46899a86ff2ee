package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-mailmerge/pkg/compose"
)

func newTemplatesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the available templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.mailer()
			if err != nil {
				return err
			}
			store := m.Store()
			if store.Empty() {
				fmt.Fprintln(cmd.OutOrStdout(), "No templates found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tVARIABLES")
			for _, id := range store.IDs() {
				tpl, _ := store.Get(id)
				fmt.Fprintf(w, "%s\t%s\t%s\n", tpl.ID, tpl.Name, strings.Join(tpl.PlaceholderNames(), ", "))
			}
			return w.Flush()
		},
	}
}

func newSchemaCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <template>",
		Short: "Print the OpenAPI schema of a template's send payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.mailer()
			if err != nil {
				return err
			}
			schema, err := m.Schema(args[0])
			if err != nil {
				return err
			}
			payload, err := json.MarshalIndent(schema.OpenAPI(), "", "  ")
			if err != nil {
				return fmt.Errorf("encode schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		},
	}
}

func newPreviewCommand(a *app) *cobra.Command {
	var entriesPath string
	cmd := &cobra.Command{
		Use:   "preview <template>",
		Short: "Render every recipient's email without sending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := compose.LoadEntriesFile(entriesPath)
			if err != nil {
				return err
			}
			m, err := a.mailer()
			if err != nil {
				return err
			}
			msgs, err := m.Preview(args[0], entries)
			if err != nil {
				return describe(cmd, err)
			}

			out := cmd.OutOrStdout()
			for i, msg := range msgs {
				if i > 0 {
					fmt.Fprintln(out, strings.Repeat("-", 40))
				}
				fmt.Fprintf(out, "From: %s\nTo: %s\nSubject: %s\n\n", msg.From, msg.To, msg.Subject)
				body := msg.Text
				if strings.TrimSpace(body) == "" {
					body = msg.HTML
				}
				fmt.Fprintln(out, strings.TrimRight(body, "\n"))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&entriesPath, "entries", "e", "", "JSON or YAML recipients file (- for stdin)")
	_ = cmd.MarkFlagRequired("entries")
	return cmd
}
