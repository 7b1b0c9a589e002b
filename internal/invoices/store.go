package invoices

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yakov55994/manage-sub003/internal/fsutil"
	"github.com/yakov55994/manage-sub003/internal/model"
)

var (
	// ErrDuplicateInvoice is returned by Add for an id that already exists.
	ErrDuplicateInvoice = errors.New("invoices: duplicate invoice id")

	// ErrUnknownReservation is returned when no invoice is held by a token.
	ErrUnknownReservation = errors.New("invoices: unknown reservation")
)

// DefaultPath is the invoice file location relative to a project root.
var DefaultPath = filepath.Join("invoices", "invoices.csv")

// Reservation summarizes the invoices held by one token.
type Reservation struct {
	Token       string
	InvoiceIDs  []string
	TotalAmount int64
	ReservedAt  time.Time
}

// Store keeps invoices in a CSV file. Every status transition rewrites the
// file atomically while holding both an in-process mutex and a file lock,
// which makes Reserve the single serialization point for payment runs.
type Store struct {
	path     string
	mu       sync.Mutex
	now      func() time.Time
	newToken func() string
}

// NewStore creates a Store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{
		path:     path,
		now:      time.Now,
		newToken: uuid.NewString,
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Add appends new payable invoices. Ids must be unique.
func (s *Store) Add(ctx context.Context, invs ...model.Invoice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(all []model.Invoice) ([]model.Invoice, error) {
		seen := make(map[string]bool, len(all)+len(invs))
		for _, inv := range all {
			seen[inv.ID] = true
		}
		for _, inv := range invs {
			if inv.ID == "" {
				return nil, fmt.Errorf("invoice without id")
			}
			if seen[inv.ID] {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateInvoice, inv.ID)
			}
			seen[inv.ID] = true
			inv.Status = model.InvoicePayable
			inv.Reservation = ""
			inv.ReservedAt = time.Time{}
			inv.PaidAt = time.Time{}
			all = append(all, inv)
		}
		return all, nil
	})
}

// Get returns the requested invoices keyed by id. Unknown ids are absent
// from the result.
func (s *Store) Get(ctx context.Context, ids []string) (map[string]model.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[string]model.Invoice, len(ids))
	for _, inv := range all {
		if want[inv.ID] {
			out[inv.ID] = inv
		}
	}
	return out, nil
}

// List returns invoices with the given status, or all when status is empty.
func (s *Store) List(ctx context.Context, status model.InvoiceStatus) ([]model.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	if status == "" {
		return all, nil
	}
	var out []model.Invoice
	for _, inv := range all {
		if inv.Status == status {
			out = append(out, inv)
		}
	}
	return out, nil
}

// Reserve moves every listed invoice from payable to reserved under a new
// token in one atomic step. If any invoice is unknown, reserved or paid,
// nothing changes and a ConflictError (or ValidationErrors for unknown ids)
// is returned.
func (s *Store) Reserve(ctx context.Context, ids []string) (string, []model.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	if len(ids) == 0 {
		return "", nil, model.ValidationErrors{{Kind: model.KindEmptyBatch, Description: "no invoices to reserve"}}
	}

	ids = unique(ids)
	token := s.newToken()
	var reserved []model.Invoice
	err := s.update(func(all []model.Invoice) ([]model.Invoice, error) {
		byID := make(map[string]int, len(all))
		for i, inv := range all {
			byID[inv.ID] = i
		}

		var missing model.ValidationErrors
		var conflicts []model.InvoiceConflict
		for _, id := range ids {
			i, ok := byID[id]
			if !ok {
				missing = append(missing, model.ValidationError{
					Kind:        model.KindInvoiceNotFound,
					InvoiceID:   id,
					Description: "invoice does not exist",
				})
				continue
			}
			if all[i].Status != model.InvoicePayable {
				conflicts = append(conflicts, model.InvoiceConflict{
					ID:          id,
					Status:      all[i].Status,
					Reservation: all[i].Reservation,
				})
			}
		}
		if len(missing) > 0 {
			return nil, missing
		}
		if len(conflicts) > 0 {
			return nil, &model.ConflictError{Invoices: conflicts}
		}
		// Last chance to abort without a state change.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		now := s.now().UTC().Truncate(time.Second)
		reserved = make([]model.Invoice, 0, len(ids))
		for _, id := range ids {
			inv := &all[byID[id]]
			inv.Status = model.InvoiceReserved
			inv.Reservation = token
			inv.ReservedAt = now
			reserved = append(reserved, *inv)
		}
		return all, nil
	})
	if err != nil {
		return "", nil, err
	}
	return token, reserved, nil
}

// Reserved returns the invoices currently reserved under token.
func (s *Store) Reserved(ctx context.Context, token string) ([]model.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []model.Invoice
	for _, inv := range all {
		if inv.Status == model.InvoiceReserved && inv.Reservation == token {
			out = append(out, inv)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReservation, token)
	}
	return out, nil
}

// MarkPaid moves the listed invoices from reserved to paid. Every invoice
// must be reserved under token; otherwise nothing changes.
func (s *Store) MarkPaid(ctx context.Context, token string, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(all []model.Invoice) ([]model.Invoice, error) {
		byID := make(map[string]int, len(all))
		for i, inv := range all {
			byID[inv.ID] = i
		}

		var conflicts []model.InvoiceConflict
		for _, id := range ids {
			i, ok := byID[id]
			if !ok {
				conflicts = append(conflicts, model.InvoiceConflict{ID: id})
				continue
			}
			if all[i].Status != model.InvoiceReserved || all[i].Reservation != token {
				conflicts = append(conflicts, model.InvoiceConflict{
					ID:          id,
					Status:      all[i].Status,
					Reservation: all[i].Reservation,
				})
			}
		}
		if len(conflicts) > 0 {
			return nil, &model.ConflictError{Invoices: conflicts}
		}

		now := s.now().UTC().Truncate(time.Second)
		for _, id := range ids {
			inv := &all[byID[id]]
			inv.Status = model.InvoicePaid
			inv.PaidAt = now
		}
		return all, nil
	})
}

// Release returns every invoice reserved under token to payable. It is the
// compensating action for a payment run that will not be completed.
func (s *Store) Release(ctx context.Context, token string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var released []string
	err := s.update(func(all []model.Invoice) ([]model.Invoice, error) {
		for i := range all {
			inv := &all[i]
			if inv.Status != model.InvoiceReserved || inv.Reservation != token {
				continue
			}
			inv.Status = model.InvoicePayable
			inv.Reservation = ""
			inv.ReservedAt = time.Time{}
			released = append(released, inv.ID)
		}
		if len(released) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownReservation, token)
		}
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// Stuck reports reservations older than olderThan, oldest first.
func (s *Store) Stuck(ctx context.Context, olderThan time.Duration) ([]Reservation, error) {
	reserved, err := s.List(ctx, model.InvoiceReserved)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-olderThan)
	byToken := make(map[string]*Reservation)
	var order []string
	for _, inv := range reserved {
		r, ok := byToken[inv.Reservation]
		if !ok {
			r = &Reservation{Token: inv.Reservation, ReservedAt: inv.ReservedAt}
			byToken[inv.Reservation] = r
			order = append(order, inv.Reservation)
		}
		r.InvoiceIDs = append(r.InvoiceIDs, inv.ID)
		r.TotalAmount += inv.Amount
		if inv.ReservedAt.Before(r.ReservedAt) {
			r.ReservedAt = inv.ReservedAt
		}
	}

	var out []Reservation
	for _, token := range order {
		if r := byToken[token]; r.ReservedAt.Before(cutoff) {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ReservedAt.Equal(out[j].ReservedAt) {
			return out[i].ReservedAt.Before(out[j].ReservedAt)
		}
		return out[i].Token < out[j].Token
	})
	return out, nil
}

// update runs fn over the current contents and writes its result back
// atomically. Returning an error from fn leaves the file untouched.
func (s *Store) update(fn func([]model.Invoice) ([]model.Invoice, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating invoices dir: %w", err)
	}
	unlock, err := fsutil.Lock(s.path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	next, err := fn(all)
	if err != nil {
		return err
	}
	return s.save(next)
}

func (s *Store) load() ([]model.Invoice, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening invoices %s: %w", s.path, err)
	}
	defer f.Close()

	invs, err := ReadInvoices(f)
	if err != nil {
		return nil, fmt.Errorf("reading invoices %s: %w", s.path, err)
	}
	return invs, nil
}

// save replaces the file atomically.
func (s *Store) save(invs []model.Invoice) error {
	var buf bytes.Buffer
	if err := WriteInvoices(&buf, invs); err != nil {
		return fmt.Errorf("writing invoices: %w", err)
	}
	return fsutil.WriteFile(s.path, buf.Bytes(), 0o644)
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
