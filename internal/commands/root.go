package commands

import (
	"github.com/spf13/cobra"

	"github.com/yakov55994/manage-sub003/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:     "paybatch",
		Short:   "Bank payment batch engine",
		Long:    "paybatch turns approved supplier invoices into interbank clearing files with an auditable batch history.",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.dir, "dir", "C", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&opts.actor, "actor", "", "name recorded in the audit log (default $USER)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level from paybatch.yaml")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newBatchCommand(&opts))
	rootCmd.AddCommand(newReservationsCommand(&opts))
	rootCmd.AddCommand(newInvoicesCommand(&opts))
	rootCmd.AddCommand(newCatalogCommand(&opts))
	rootCmd.AddCommand(newFileCommand(&opts))
	rootCmd.AddCommand(newAuditCommand(&opts))

	return rootCmd
}
