package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/yakov55994/manage-sub003/internal/catalog"
	"github.com/yakov55994/manage-sub003/internal/history"
	"github.com/yakov55994/manage-sub003/internal/invoices"
	"github.com/yakov55994/manage-sub003/internal/model"
)

// FileName is the project configuration file at the project root.
const FileName = "paybatch.yaml"

// Config represents the top-level paybatch.yaml configuration.
type Config struct {
	Company      model.CompanyInfo  `yaml:"company"`
	Paths        PathsConfig        `yaml:"paths"`
	Calendar     CalendarConfig     `yaml:"calendar"`
	Reservations ReservationsConfig `yaml:"reservations"`
	Log          LogConfig          `yaml:"log"`
	Git          GitConfig          `yaml:"git"`
}

// PathsConfig locates the data files, relative to the project root.
type PathsConfig struct {
	Catalog  string `yaml:"catalog"`
	Invoices string `yaml:"invoices"`
	Layout   string `yaml:"layout,omitempty"` // empty selects the built-in layout
	History  string `yaml:"history"`
}

// CalendarConfig defines the clearing house's non-business days.
type CalendarConfig struct {
	Weekend  []string `yaml:"weekend"`
	Holidays []string `yaml:"holidays,omitempty"` // "YYYY-MM-DD"
}

// ReservationsConfig controls the stuck-reservation report.
type ReservationsConfig struct {
	StuckAfter string `yaml:"stuck_after"` // Go duration, e.g. "2h"
}

// LogConfig sets the console log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a paybatch.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(company model.CompanyInfo) *Config {
	return &Config{
		Company: company,
		Paths: PathsConfig{
			Catalog:  catalog.DefaultPath,
			Invoices: invoices.DefaultPath,
			History:  history.DefaultRoot,
		},
		Calendar: CalendarConfig{
			Weekend: []string{"friday", "saturday"},
		},
		Reservations: ReservationsConfig{
			StuckAfter: "2h",
		},
		Log: LogConfig{
			Level: "info",
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Paybatch",
			AuthorEmail: "paybatch@localhost",
		},
	}
}

// Validate checks values that cannot be caught by YAML decoding.
func (c *Config) Validate() error {
	if _, err := c.StuckAfter(); err != nil {
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Paths.Catalog == "" || c.Paths.Invoices == "" || c.Paths.History == "" {
		return fmt.Errorf("paths.catalog, paths.invoices and paths.history are required")
	}
	return nil
}

// StuckAfter parses reservations.stuck_after.
func (c *Config) StuckAfter() (time.Duration, error) {
	if c.Reservations.StuckAfter == "" {
		return 2 * time.Hour, nil
	}
	d, err := time.ParseDuration(c.Reservations.StuckAfter)
	if err != nil {
		return 0, fmt.Errorf("parsing reservations.stuck_after: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("reservations.stuck_after must not be negative")
	}
	return d, nil
}

// LogLevel parses log.level; empty means info.
func (c *Config) LogLevel() (zerolog.Level, error) {
	if c.Log.Level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parsing log.level: %w", err)
	}
	return lvl, nil
}

// Resolve returns p relative to root unless it is absolute.
func Resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
