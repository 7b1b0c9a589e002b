package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yakov55994/manage-sub003/internal/batch"
	"github.com/yakov55994/manage-sub003/internal/catalog"
	"github.com/yakov55994/manage-sub003/internal/config"
	"github.com/yakov55994/manage-sub003/internal/fixedwidth"
	"github.com/yakov55994/manage-sub003/internal/gitops"
	"github.com/yakov55994/manage-sub003/internal/history"
	"github.com/yakov55994/manage-sub003/internal/invoices"
	"github.com/yakov55994/manage-sub003/internal/logging"
)

const dateFormat = "2006-01-02"

type globalOptions struct {
	dir      string
	actor    string
	logLevel string
}

// project is a loaded paybatch project directory.
type project struct {
	root     string
	actor    string
	cfg      *config.Config
	log      zerolog.Logger
	invoices *invoices.Store
	history  *history.Store
}

func openProject(cmd *cobra.Command, opts *globalOptions) (*project, error) {
	root, err := filepath.Abs(opts.dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, fmt.Errorf("%w (run 'paybatch init' first?)", err)
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		if level, err = zerolog.ParseLevel(opts.logLevel); err != nil {
			return nil, fmt.Errorf("parsing --log-level: %w", err)
		}
	}

	actor := opts.actor
	if actor == "" {
		actor = os.Getenv("USER")
	}
	if actor == "" {
		actor = "paybatch"
	}

	return &project{
		root:     root,
		actor:    actor,
		cfg:      cfg,
		log:      logging.New(cmd.ErrOrStderr(), level),
		invoices: invoices.NewStore(config.Resolve(root, cfg.Paths.Invoices)),
		history:  history.NewStore(config.Resolve(root, cfg.Paths.History)),
	}, nil
}

func (p *project) catalog() (*catalog.Catalog, error) {
	return catalog.Load(config.Resolve(p.root, p.cfg.Paths.Catalog))
}

func (p *project) layout() (fixedwidth.Layout, error) {
	if p.cfg.Paths.Layout == "" {
		return fixedwidth.DefaultLayout(), nil
	}
	return fixedwidth.LoadLayout(config.Resolve(p.root, p.cfg.Paths.Layout))
}

func (p *project) calendar() (*batch.WeekendCalendar, error) {
	return batch.NewWeekendCalendar(p.cfg.Calendar.Weekend, p.cfg.Calendar.Holidays)
}

func (p *project) service() (*batch.Service, error) {
	cat, err := p.catalog()
	if err != nil {
		return nil, err
	}
	layout, err := p.layout()
	if err != nil {
		return nil, err
	}
	cal, err := p.calendar()
	if err != nil {
		return nil, err
	}

	opts := []batch.Option{
		batch.WithCalendar(cal),
		batch.WithAuditLog(p.root),
	}
	if p.cfg.Git.AutoCommit && gitops.IsRepo(p.root) {
		opts = append(opts, batch.WithCommitter(gitops.Committer{
			Dir:         p.root,
			AuthorName:  p.cfg.Git.AuthorName,
			AuthorEmail: p.cfg.Git.AuthorEmail,
		}))
	}
	return batch.NewService(p.invoices, cat, p.history, layout, p.log, opts...), nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}
