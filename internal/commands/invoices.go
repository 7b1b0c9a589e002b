package commands

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yakov55994/manage-sub003/internal/auditlog"
	"github.com/yakov55994/manage-sub003/internal/importer"
	"github.com/yakov55994/manage-sub003/internal/model"
)

func newInvoicesCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Import and list invoices",
	}
	cmd.AddCommand(newInvoicesImportCommand(opts))
	cmd.AddCommand(newInvoicesListCommand(opts))
	return cmd
}

func newInvoicesImportCommand(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import approved invoices",
		Long: "Import invoice exports. Without arguments every CSV in import/ is read and " +
			"moved to import/processed/ once its invoices are stored.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, opts)
			if err != nil {
				return err
			}
			reg := importer.DefaultRegistry()

			type source struct {
				name, path string
				scanned    bool
			}
			var sources []source
			if len(args) > 0 {
				for _, a := range args {
					sources = append(sources, source{name: filepath.Base(a), path: a})
				}
			} else {
				files, err := importer.Scan(p.root)
				if err != nil {
					return err
				}
				for _, f := range files {
					sources = append(sources, source{name: f.Name, path: f.Path, scanned: true})
				}
			}
			if len(sources) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No files to import.")
				return nil
			}

			out := cmd.OutOrStdout()
			for _, src := range sources {
				invs, parser, err := reg.ReadFile(src.path, format)
				if err != nil {
					return err
				}
				if err := p.invoices.Add(cmd.Context(), invs...); err != nil {
					return fmt.Errorf("%s: %w", src.name, err)
				}
				if src.scanned {
					if _, err := importer.MarkProcessed(p.root, src.name); err != nil {
						return err
					}
				}

				p.log.Info().Str("file", src.name).Str("format", parser.Format()).Int("invoices", len(invs)).Msg("imported invoices")
				if err := auditlog.Append(p.root, []auditlog.Entry{{
					Timestamp: time.Now(),
					Actor:     p.actor,
					Action:    auditlog.ActionImport,
					Details:   fmt.Sprintf("%d %s invoices from %s", len(invs), parser.Format(), src.name),
				}}); err != nil {
					p.log.Warn().Err(err).Msg("writing audit log")
				}
				fmt.Fprintf(out, "Imported %d invoices from %s\n", len(invs), src.name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "export format, erp or paybatch (default: detect from header)")
	return cmd
}

func newInvoicesListCommand(opts *globalOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := model.InvoiceStatus(status)
			if status != "" && !st.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			p, err := openProject(cmd, opts)
			if err != nil {
				return err
			}
			invs, err := p.invoices.List(cmd.Context(), st)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPAYEE\tBANK\tBRANCH\tACCOUNT\tAMOUNT\tPROJECT\tSTATUS\tRESERVATION")
			for _, inv := range invs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					inv.ID, inv.Payee, inv.BankCode, inv.BranchCode, inv.AccountNumber,
					model.FormatAmount(inv.Amount), inv.ProjectRef, inv.Status, inv.Reservation)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only invoices with this status: payable, reserved or paid")
	return cmd
}
