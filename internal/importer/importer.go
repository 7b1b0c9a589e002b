// Package importer reads invoice exports dropped into the import directory.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yakov55994/manage-sub003/internal/model"
)

// ErrUnknownFormat is returned when no parser recognizes a file.
var ErrUnknownFormat = errors.New("importer: unknown export format")

// Parser converts an exported invoice CSV into payable invoices.
type Parser interface {
	Format() string
	// Detect reports whether header is the first row of this format.
	Detect(header []string) bool
	Parse(r io.Reader) ([]model.Invoice, error)
}

// Registry holds named parsers in registration order.
type Registry struct {
	parsers []Parser
	byName  map[string]Parser
}

// FileInfo describes a CSV file waiting in the import directory.
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.byName[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.byName[key] = p
	r.parsers = append(r.parsers, p)
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.byName[strings.ToLower(format)]
}

// Formats lists the registered format names.
func (r *Registry) Formats() []string {
	names := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		names[i] = p.Format()
	}
	return names
}

// Detect returns the first parser that recognizes header, or nil.
func (r *Registry) Detect(header []string) Parser {
	for _, p := range r.parsers {
		if p.Detect(header) {
			return p
		}
	}
	return nil
}

// utf8BOM is prepended by spreadsheet tools when saving CSV.
var utf8BOM = []byte("\ufeff")

// ReadFile parses the export at path. An empty format selects the parser
// by the file's header row.
func (r *Registry) ReadFile(path, format string) ([]model.Invoice, Parser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var p Parser
	if format != "" {
		if p = r.Get(format); p == nil {
			return nil, nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownFormat, format, strings.Join(r.Formats(), ", "))
		}
	} else {
		cr := csv.NewReader(bytes.NewReader(data))
		cr.FieldsPerRecord = -1
		header, err := cr.Read()
		if err != nil {
			return nil, nil, fmt.Errorf("reading header of %s: %w", filepath.Base(path), err)
		}
		if p = r.Detect(header); p == nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Base(path))
		}
	}

	invs, err := p.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, p, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return invs, p, nil
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&NativeParser{})
	r.Register(&ERPParser{})
	return r
}

const (
	importDir    = "import"
	processedDir = "import/processed"
)

// Scan returns CSV files in <root>/import/, sorted by name.
func Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name:    e.Name(),
			Path:    filepath.Join(dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/ and returns
// its new name. An earlier export with the same name is never overwritten;
// the moved file gets a numeric suffix instead.
func MarkProcessed(root, fileName string) (string, error) {
	src := filepath.Join(root, importDir, fileName)
	dstDir := filepath.Join(root, processedDir)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("creating processed dir: %w", err)
	}

	ext := filepath.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	name := fileName
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(dstDir, name)); os.IsNotExist(err) {
			break
		} else if err != nil {
			return "", fmt.Errorf("checking processed dir: %w", err)
		}
		name = base + "-" + strconv.Itoa(i) + ext
	}

	if err := os.Rename(src, filepath.Join(dstDir, name)); err != nil {
		return "", fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return name, nil
}
