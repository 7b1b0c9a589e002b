package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yakov55994/manage-sub003/internal/fixedwidth"
	"github.com/yakov55994/manage-sub003/internal/model"
)

func newFileCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Work with clearing files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify <path>",
		Short: "Check a clearing file's trailer against its details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, opts)
			if err != nil {
				return err
			}
			layout, err := p.layout()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading clearing file: %w", err)
			}
			f, err := fixedwidth.Decode(layout, data)
			if err != nil {
				return err
			}
			s, err := fixedwidth.Verify(layout, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d payments, total %s, checksum %d\n",
				s.RecordCount, model.FormatAmount(s.TotalAmount), s.Checksum)
			return nil
		},
	})
	return cmd
}
