package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "schoolhub",
		Short:         "Multi-tenant online school backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newPreviewEmailCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
