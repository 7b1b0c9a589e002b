package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yakov55994/manage-sub003/internal/batch"
	"github.com/yakov55994/manage-sub003/internal/history"
	"github.com/yakov55994/manage-sub003/internal/model"
)

func newBatchCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate and inspect payment batches",
	}
	cmd.AddCommand(newBatchGenerateCommand(opts))
	cmd.AddCommand(newBatchListCommand(opts))
	cmd.AddCommand(newBatchShowCommand(opts))
	cmd.AddCommand(newBatchResumeCommand(opts))
	cmd.AddCommand(newBatchReleaseCommand(opts))
	return cmd
}

func newBatchGenerateCommand(opts *globalOptions) *cobra.Command {
	var date string
	var all bool

	cmd := &cobra.Command{
		Use:   "generate [invoice-id...]",
		Short: "Reserve invoices and produce a clearing file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return fmt.Errorf("pass either invoice ids or --all")
			}
			p, err := openProject(cmd, opts)
			if err != nil {
				return err
			}
			execDate, err := parseDate(date)
			if err != nil {
				return err
			}

			ids := args
			if all {
				payable, err := p.invoices.List(cmd.Context(), model.InvoicePayable)
				if err != nil {
					return err
				}
				for _, inv := range payable {
					ids = append(ids, inv.ID)
				}
			}

			svc, err := p.service()
			if err != nil {
				return err
			}
			res, err := svc.Generate(cmd.Context(), batch.Request{
				InvoiceIDs:    ids,
				ExecutionDate: execDate,
				Company:       p.cfg.Company,
				Actor:         p.actor,
			})
			if err != nil {
				return explain(err)
			}
			printResult(cmd.OutOrStdout(), p.history.Root(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "execution date, YYYY-MM-DD (required)")
	cmd.Flags().BoolVar(&all, "all", false, "include every payable invoice")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newBatchResumeCommand(opts *globalOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "resume <reservation>",
		Short: "Finish an interrupted run",
		Long: "Finish a run that failed after reserving its invoices. Pass the same --date as the " +
			"original run when no batch was persisted yet.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, opts)
			if err != nil {
				return err
			}
			req := batch.Request{Company: p.cfg.Company, Actor: p.actor}
			if date != "" {
				if req.ExecutionDate, err = parseDate(date); err != nil {
					return err
				}
			}

			svc, err := p.service()
			if err != nil {
				return err
			}
			res, err := svc.Resume(cmd.Context(), args[0], req)
			if err != nil {
				return explain(err)
			}
			printResult(cmd.OutOrStdout(), p.history.Root(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "execution date of the original run, YYYY-MM-DD")
	return cmd
}

func newBatchReleaseCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "release <reservation>",
		Short: "Return the invoices of an abandoned run to payable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, opts)
			if err != nil {
				return err
			}
			svc, err := p.service()
			if err != nil {
				return err
			}
			ids, err := svc.Release(cmd.Context(), args[0], p.actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Released %d invoices: %v\n", len(ids), ids)
			return nil
		},
	}
}

func newBatchListCommand(opts *globalOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored batches, most recent execution date first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, opts)
			if err != nil {
				return err
			}
			var lo history.ListOptions
			if from != "" {
				if lo.From, err = parseDate(from); err != nil {
					return err
				}
			}
			if to != "" {
				if lo.To, err = parseDate(to); err != nil {
					return err
				}
			}

			entries, err := p.history.ListByDate(cmd.Context(), lo)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tBATCH\tPAYMENTS\tTOTAL\tFILE\tCREATED")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					e.ExecutionDate.Format(dateFormat), e.ID, e.TotalPayments,
					model.FormatAmount(e.TotalAmount), e.FileName, e.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "earliest execution date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "latest execution date, YYYY-MM-DD")
	return cmd
}

func newBatchShowCommand(opts *globalOptions) *cobra.Command {
	var export string

	cmd := &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show a stored batch and verify its digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, opts)
			if err != nil {
				return err
			}
			b, err := p.history.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Batch %s\n", b.ID)
			fmt.Fprintf(out, "Reservation: %s\n", b.Reservation)
			fmt.Fprintf(out, "Execution date: %s\n", b.ExecutionDate.Format(dateFormat))
			fmt.Fprintf(out, "Generated: %s by %s\n", b.GeneratedAt.Format("2006-01-02 15:04:05"), b.GeneratedBy)
			fmt.Fprintf(out, "File: %s (blake2b %s)\n", b.FileName, b.Digest)
			fmt.Fprintf(out, "Total: %s in %d payments\n\n", model.FormatAmount(b.TotalAmount), b.TotalPayments)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tPAYEE\tBANK\tBRANCH\tACCOUNT\tAMOUNT\tINVOICES")
			for _, l := range b.Payments {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					l.Seq, l.Payee, l.BankCode, l.BranchCode, l.AccountNumber, model.FormatAmount(l.Amount), l.InvoiceRefs())
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if export == "" {
				return nil
			}
			if err := os.MkdirAll(export, 0o755); err != nil {
				return fmt.Errorf("creating export dir: %w", err)
			}
			if err := os.WriteFile(filepath.Join(export, b.FileName), b.File, 0o644); err != nil {
				return fmt.Errorf("exporting file: %w", err)
			}
			if b.ReportName != "" {
				if err := os.WriteFile(filepath.Join(export, b.ReportName), b.Report, 0o644); err != nil {
					return fmt.Errorf("exporting report: %w", err)
				}
			}
			fmt.Fprintf(out, "\nExported to %s\n", export)
			return nil
		},
	}

	cmd.Flags().StringVar(&export, "export", "", "copy the clearing file and report to this directory")
	return cmd
}

func printResult(out io.Writer, historyRoot string, res *batch.Result) {
	b := res.Batch
	verb := "Generated"
	if res.Resumed {
		verb = "Completed"
	}
	fmt.Fprintf(out, "%s batch %s: %d payments, total %s\n", verb, b.ID, b.TotalPayments, model.FormatAmount(b.TotalAmount))
	fmt.Fprintf(out, "File: %s\n", filepath.Join(historyRoot, b.ID, b.FileName))
	if b.ReportName != "" {
		fmt.Fprintf(out, "Report: %s\n", filepath.Join(historyRoot, b.ID, b.ReportName))
	}
	for _, t := range res.Truncations {
		fmt.Fprintf(out, "Truncated %s record %d field %s: %q -> %q\n", t.Record, t.Line, t.Field, t.Original, t.Written)
	}
	if res.Commit != "" {
		fmt.Fprintf(out, "Committed %s\n", res.Commit)
	}
}

// explain adds the recovery command to errors that leave a reservation held.
func explain(err error) error {
	var perr *model.PersistenceError
	if errors.As(err, &perr) {
		return fmt.Errorf("%w\nrun 'paybatch batch resume %s' to finish, or 'paybatch batch release %s' to abandon",
			err, perr.Reservation, perr.Reservation)
	}
	return err
}
