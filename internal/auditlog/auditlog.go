// Package auditlog appends an operator-readable trail of payment actions.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yakov55994/manage-sub003/internal/fsutil"
)

// Actions recorded by the payment pipeline.
const (
	ActionReserve     = "reserve"
	ActionGenerate    = "generate"
	ActionMarkPaid    = "mark_paid"
	ActionResume      = "resume"
	ActionRelease     = "release"
	ActionFailed      = "failed"
	ActionImport      = "import"
	ActionCommit      = "commit"
	ActionInitProject = "init"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp   time.Time
	Actor       string
	Action      string
	Reservation string
	BatchID     string
	Details     string
}

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,actor,action,reservation,batch_id,details"

const (
	numFields      = 6
	logDir         = "logs"
	logFile        = "logs/audit-log.csv"
	colTimestamp   = 0
	colActor       = 1
	colAction      = 2
	colReservation = 3
	colBatchID     = 4
	colDetails     = 5
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colActor] = e.Actor
	row[colAction] = e.Action
	row[colReservation] = e.Reservation
	row[colBatchID] = e.BatchID
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp:   ts,
		Actor:       record[colActor],
		Action:      record[colAction],
		Reservation: record[colReservation],
		BatchID:     record[colBatchID],
		Details:     record[colDetails],
	}, nil
}

// Append writes entries to <root>/logs/audit-log.csv, creating the file
// with its header on first use. Appends from several processes are
// serialized by a lock file; each call is synced, or rolled back on failure.
func Append(root string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for i, e := range entries {
		if e.Action == "" {
			return fmt.Errorf("entry %d: missing action", i)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, logDir), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(root, logFile)
	unlock, err := fsutil.Lock(path + ".lock")
	if err != nil {
		return fmt.Errorf("locking audit log: %w", err)
	}
	defer unlock()

	return fsutil.AppendFile(path, 0o644, func(w io.Writer, empty bool) error {
		cw := csv.NewWriter(w)
		if empty {
			if err := cw.Write(strings.Split(Header, ",")); err != nil {
				return fmt.Errorf("writing header: %w", err)
			}
		}
		for i, e := range entries {
			if err := cw.Write(MarshalEntry(e)); err != nil {
				return fmt.Errorf("writing entry %d: %w", i, err)
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// Read returns all entries from <root>/logs/audit-log.csv, or nil when the
// log does not exist yet.
func Read(root string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(root, logFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

// Filter selects audit entries. Empty fields match everything.
type Filter struct {
	Reservation string
	BatchID     string
	Action      string
	Since       time.Time
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	switch {
	case f.Reservation != "" && e.Reservation != f.Reservation:
		return false
	case f.BatchID != "" && e.BatchID != f.BatchID:
		return false
	case f.Action != "" && e.Action != f.Action:
		return false
	case !f.Since.IsZero() && e.Timestamp.Before(f.Since):
		return false
	}
	return true
}

// Select returns the entries matching f, in log order.
func Select(entries []Entry, f Filter) []Entry {
	var out []Entry
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// ForReservation returns the trail of one payment run.
func ForReservation(entries []Entry, token string) []Entry {
	return Select(entries, Filter{Reservation: token})
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
