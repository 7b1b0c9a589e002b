// Package history keeps an append-only record of every generated batch.
//
// Layout under the store root:
//
//	index.csv             one row per batch, appended last (commit point)
//	<batch-id>/batch.json the batch aggregate
//	<batch-id>/<file>     the encoded clearing file
//	<batch-id>/<report>   the rendered report, when present
//
// A batch directory without an index row is an abandoned write and is
// never returned.
package history

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/yakov55994/manage-sub003/internal/fsutil"
	"github.com/yakov55994/manage-sub003/internal/model"
)

var (
	// ErrNotFound is returned for an unknown batch id or reservation.
	ErrNotFound = errors.New("history: batch not found")

	// ErrDuplicateReservation is returned by Create when a batch already
	// exists for the reservation.
	ErrDuplicateReservation = errors.New("history: batch already exists for reservation")

	// ErrCorrupted is returned when stored bytes no longer match the digest.
	ErrCorrupted = errors.New("history: stored batch does not match its digest")
)

// DefaultRoot is the history directory relative to a project root.
const DefaultRoot = "batches"

const (
	indexFile = "index.csv"
	lockFile  = "index.lock"
	batchFile = "batch.json"
)

// ListOptions bounds ListByDate by execution date, inclusive. Zero values
// leave that side open.
type ListOptions struct {
	From time.Time
	To   time.Time
}

// Store is a file-backed batch history. Batches can be created and read,
// never updated or deleted.
type Store struct {
	root  string
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir, now: time.Now, newID: uuid.NewString}
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.root
}

// Digest returns the hex blake2b-256 digest of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Create persists b and returns its new id. b must satisfy its invariants
// and carry the encoded file. On success ID, CreatedAt and Digest are set on
// b. At most one batch is stored per reservation.
func (s *Store) Create(ctx context.Context, b *model.Batch) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if verrs := b.Validate(); len(verrs) > 0 {
		return "", verrs
	}
	if len(b.File) == 0 {
		return "", fmt.Errorf("batch has no encoded file")
	}
	if err := checkName(b.FileName); err != nil {
		return "", err
	}
	if len(b.Report) > 0 {
		if err := checkName(b.ReportName); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("creating history dir: %w", err)
	}
	unlock, err := fsutil.Lock(filepath.Join(s.root, lockFile))
	if err != nil {
		return "", err
	}
	defer unlock()

	entries, err := s.index()
	if err != nil {
		return "", err
	}
	if b.Reservation != "" {
		for _, e := range entries {
			if e.Reservation == b.Reservation {
				return "", fmt.Errorf("%w: %s (batch %s)", ErrDuplicateReservation, b.Reservation, e.ID)
			}
		}
	}

	stored := *b
	stored.ID = s.newID()
	stored.CreatedAt = s.now().UTC().Truncate(time.Second)
	stored.Digest = Digest(b.File)
	if len(stored.Report) == 0 {
		stored.ReportName = ""
	}

	dir := filepath.Join(s.root, stored.ID)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating batch dir: %w", err)
	}
	if err := writeBatch(dir, &stored); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	if err := ctx.Err(); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	if err := s.appendIndex(entryOf(&stored)); err != nil {
		os.RemoveAll(dir)
		return "", err
	}

	b.ID, b.CreatedAt, b.Digest, b.ReportName = stored.ID, stored.CreatedAt, stored.Digest, stored.ReportName
	return stored.ID, nil
}

// Get loads a batch with its file and report and verifies the digest.
func (s *Store) Get(ctx context.Context, batchID string) (*model.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(batchID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, batchID)
	}

	entries, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	var entry *Entry
	for i := range entries {
		if entries[i].ID == batchID {
			entry = &entries[i]
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, batchID)
	}

	dir := filepath.Join(s.root, batchID)
	data, err := os.ReadFile(filepath.Join(dir, batchFile))
	if err != nil {
		return nil, fmt.Errorf("reading batch %s: %w", batchID, err)
	}
	var b model.Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %s: decoding batch.json: %v", ErrCorrupted, batchID, err)
	}
	if b.File, err = os.ReadFile(filepath.Join(dir, entry.FileName)); err != nil {
		return nil, fmt.Errorf("reading batch %s file: %w", batchID, err)
	}
	if entry.ReportName != "" {
		if b.Report, err = os.ReadFile(filepath.Join(dir, entry.ReportName)); err != nil {
			return nil, fmt.Errorf("reading batch %s report: %w", batchID, err)
		}
	}

	if d := Digest(b.File); d != entry.Digest || d != b.Digest {
		return nil, fmt.Errorf("%w: %s", ErrCorrupted, batchID)
	}
	if b.ID != batchID || b.Reservation != entry.Reservation || b.TotalAmount != entry.TotalAmount {
		return nil, fmt.Errorf("%w: %s: batch.json disagrees with index", ErrCorrupted, batchID)
	}
	return &b, nil
}

// ListByDate returns index entries within opts, most recent execution date
// first; batches sharing a date are ordered newest first.
func (s *Store) ListByDate(ctx context.Context, opts ListOptions) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := s.readIndex()
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, e := range entries {
		if !opts.From.IsZero() && e.ExecutionDate.Before(day(opts.From)) {
			continue
		}
		if !opts.To.IsZero() && e.ExecutionDate.After(day(opts.To)) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.ExecutionDate.Equal(b.ExecutionDate) {
			return a.ExecutionDate.After(b.ExecutionDate)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out, nil
}

// FindByReservation returns the entry of the batch created for token.
func (s *Store) FindByReservation(ctx context.Context, token string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	entries, err := s.readIndex()
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.Reservation == token {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: reservation %s", ErrNotFound, token)
}

func (s *Store) readIndex() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index()
}

func (s *Store) index() ([]Entry, error) {
	data, err := os.ReadFile(filepath.Join(s.root, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading batch index: %w", err)
	}
	entries, err := ReadIndex(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("batch index: %w", err)
	}
	return entries, nil
}

// appendIndex adds e to the index. The header is written when the file is
// empty, and a failed append is rolled back.
func (s *Store) appendIndex(e Entry) error {
	err := fsutil.AppendFile(filepath.Join(s.root, indexFile), 0o644, func(w io.Writer, empty bool) error {
		return writeEntries(w, empty, e)
	})
	if err != nil {
		return fmt.Errorf("appending batch index: %w", err)
	}
	return nil
}

func writeBatch(dir string, b *model.Batch) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling batch: %w", err)
	}
	if err := fsutil.WriteFile(filepath.Join(dir, batchFile), data, 0o644); err != nil {
		return err
	}
	if err := fsutil.WriteFile(filepath.Join(dir, b.FileName), b.File, 0o644); err != nil {
		return err
	}
	if len(b.Report) > 0 {
		if err := fsutil.WriteFile(filepath.Join(dir, b.ReportName), b.Report, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func checkName(name string) error {
	if name == "" || name == batchFile || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("invalid stored file name %q", name)
	}
	return nil
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
