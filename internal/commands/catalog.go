package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCatalogCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Query the bank reference catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "lookup <bank> [branch]",
		Short: "Look up a bank or branch by code",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, opts)
			if err != nil {
				return err
			}
			cat, err := p.catalog()
			if err != nil {
				return err
			}
			bank, err := cat.LookupBank(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Bank %s: %s\n", bank.Code, bank.Name)
			if len(args) == 1 {
				for _, br := range bank.Branches {
					fmt.Fprintf(out, "  %s  %s  %s\n", br.Code, br.City, br.Address)
				}
				return nil
			}
			br, err := cat.LookupBranch(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Branch %s: %s, %s\n", br.Code, br.City, br.Address)
			return nil
		},
	})
	return cmd
}
