package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yakov55994/manage-sub003/internal/model"
)

func newReservationsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reservations",
		Short: "Inspect held reservations",
	}
	cmd.AddCommand(newReservationsStuckCommand(opts))
	return cmd
}

func newReservationsStuckCommand(opts *globalOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "stuck",
		Short: "List reservations that never completed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, opts)
			if err != nil {
				return err
			}
			age := olderThan
			if !cmd.Flags().Changed("older-than") {
				if age, err = p.cfg.StuckAfter(); err != nil {
					return err
				}
			}
			svc, err := p.service()
			if err != nil {
				return err
			}
			stuck, err := svc.Stuck(cmd.Context(), age)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(stuck) == 0 {
				fmt.Fprintf(out, "No reservations older than %s.\n", age)
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RESERVATION\tRESERVED\tINVOICES\tTOTAL\tBATCH")
			for _, r := range stuck {
				batchID := "-"
				if r.BatchID != "" {
					batchID = r.BatchID
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					r.Token, r.ReservedAt.Format("2006-01-02 15:04"), len(r.InvoiceIDs),
					model.FormatAmount(r.TotalAmount), batchID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "minimum reservation age (default from paybatch.yaml)")
	return cmd
}
