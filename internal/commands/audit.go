package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yakov55994/manage-sub003/internal/auditlog"
)

func newAuditCommand(opts *globalOptions) *cobra.Command {
	var f auditlog.Filter
	var since string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, opts)
			if err != nil {
				return err
			}
			if since != "" {
				if f.Since, err = parseDate(since); err != nil {
					return err
				}
			}
			entries, err := auditlog.Read(p.root)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACTOR\tACTION\tRESERVATION\tBATCH\tDETAILS")
			for _, e := range auditlog.Select(entries, f) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Actor, e.Action,
					e.Reservation, e.BatchID, e.Details)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&f.Reservation, "reservation", "", "only this reservation")
	cmd.Flags().StringVar(&f.BatchID, "batch", "", "only this batch id")
	cmd.Flags().StringVar(&f.Action, "action", "", "only this action, e.g. generate or release")
	cmd.Flags().StringVar(&since, "since", "", "only entries on or after this date, YYYY-MM-DD")
	return cmd
}
