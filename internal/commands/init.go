package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/yakov55994/manage-sub003/internal/auditlog"
	"github.com/yakov55994/manage-sub003/internal/batch"
	"github.com/yakov55994/manage-sub003/internal/catalog"
	"github.com/yakov55994/manage-sub003/internal/config"
	"github.com/yakov55994/manage-sub003/internal/fixedwidth"
	"github.com/yakov55994/manage-sub003/internal/gitops"
	"github.com/yakov55994/manage-sub003/internal/invoices"
	"github.com/yakov55994/manage-sub003/internal/model"
)

// layoutPath is where init writes an editable copy of the built-in layout.
var layoutPath = filepath.Join("reference", "layout.yaml")

type initOptions struct {
	company model.CompanyInfo
	noGit   bool
}

func newInitCommand() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new paybatch project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.OutOrStdout(), absDir, opts)
		},
	}

	cmd.Flags().StringVar(&opts.company.Name, "name", "", "paying company name (required)")
	cmd.Flags().StringVar(&opts.company.InstituteID, "institute", "", "institute id assigned by the clearing house (required)")
	cmd.Flags().StringVar(&opts.company.SenderID, "sender", "001", "sender id for submissions")
	cmd.Flags().BoolVar(&opts.noGit, "no-git", false, "do not initialize a git repository")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("institute")

	return cmd
}

func runInit(out io.Writer, dir string, opts initOptions) error {
	if verrs := batch.ValidateCompany(opts.company); len(verrs) > 0 {
		return verrs
	}
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		return fmt.Errorf("%s already exists in %s", config.FileName, dir)
	}

	cfg := config.Default(opts.company)
	cfg.Paths.Layout = layoutPath

	dirs := []string{
		"reference",
		filepath.Dir(cfg.Paths.Invoices),
		cfg.Paths.History,
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := catalog.New(catalog.DefaultBanks()).Save(filepath.Join(dir, cfg.Paths.Catalog)); err != nil {
		return fmt.Errorf("writing bank catalog: %w", err)
	}
	if err := fixedwidth.SaveLayout(filepath.Join(dir, layoutPath), fixedwidth.DefaultLayout()); err != nil {
		return fmt.Errorf("writing layout: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, cfg.Paths.Invoices))
	if err != nil {
		return fmt.Errorf("creating invoices file: %w", err)
	}
	if err := invoices.WriteInvoices(f, nil); err != nil {
		f.Close()
		return fmt.Errorf("writing invoices file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing invoices file: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}
	if err := auditlog.Append(dir, []auditlog.Entry{{
		Timestamp: time.Now(),
		Actor:     cfg.Git.AuthorName,
		Action:    auditlog.ActionInitProject,
		Details:   fmt.Sprintf("institute %s sender %s", opts.company.InstituteID, opts.company.SenderID),
	}}); err != nil {
		return err
	}

	if opts.noGit {
		fmt.Fprintf(out, "Initialized paybatch project at %s\n", dir)
		return nil
	}

	if err := gitops.EnsureIgnored(dir, "*.lock", "*.tmp", ".*.tmp"); err != nil {
		return err
	}
	if err := gitops.Init(dir); err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	hash, err := gitops.CommitAll(dir, "init: Initialize "+opts.company.Name, cfg.Git.AuthorName, cfg.Git.AuthorEmail)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	fmt.Fprintf(out, "Initialized paybatch project at %s (%s)\n", dir, hash)
	return nil
}
