package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/deppfellow/schoolhub/internal/lib/email"
)

// newPreviewEmailCommand renders a template with its sample data. It needs
// no config, database or Redis.
func newPreviewEmailCommand() *cobra.Command {
	var subjectOnly bool

	cmd := &cobra.Command{
		Use:   "preview-email <template>",
		Short: "Render an email template with sample data to stdout",
		Args:  cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return templateNames(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := email.Template(args[0])
			if _, ok := email.Templates[name]; !ok {
				return fmt.Errorf("unknown template %q, expected one of %v", args[0], templateNames())
			}

			renderer, err := email.NewRenderer()
			if err != nil {
				return err
			}
			rendered, err := renderer.Render(name, email.PreviewData[name])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if subjectOnly {
				_, err = fmt.Fprintln(out, rendered.Subject)
				return err
			}
			_, err = fmt.Fprintf(out, "Subject: %s\n\n%s\n", rendered.Subject, rendered.HTML)
			return err
		},
	}
	cmd.Flags().BoolVar(&subjectOnly, "subject", false, "print only the rendered subject line")
	return cmd
}

func templateNames() []string {
	names := make([]string, 0, len(email.Templates))
	for name := range email.Templates {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}
