package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation matches any ValidationErrors via errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrConflict matches a ConflictError via errors.Is.
	ErrConflict = errors.New("invoices already committed to another batch")

	// ErrPersistence matches a PersistenceError via errors.Is.
	ErrPersistence = errors.New("persistence failed")
)

// ErrorKind classifies a validation failure.
type ErrorKind string

const (
	KindEmptyBatch      ErrorKind = "empty_batch"
	KindInvalidAmount   ErrorKind = "invalid_amount"
	KindBankNotFound    ErrorKind = "bank_not_found"
	KindBranchNotFound  ErrorKind = "branch_not_found"
	KindFieldOverflow   ErrorKind = "field_overflow"
	KindInvoiceNotFound ErrorKind = "invoice_not_found"
	KindInvalidAccount  ErrorKind = "invalid_account"
	KindMissingPayee    ErrorKind = "missing_payee"
	KindInvalidCompany  ErrorKind = "invalid_company"
	KindInvalidDate     ErrorKind = "invalid_date"
	KindInvalidSequence ErrorKind = "invalid_sequence"
	KindInvalidField    ErrorKind = "invalid_field"
)

// ValidationError describes a single offending invoice, line or field.
type ValidationError struct {
	Kind        ErrorKind
	InvoiceID   string
	Field       string
	Record      string // header, detail or trailer for encoding failures
	Line        int    // payment sequence or file record index, 0 when not applicable
	Description string
}

func (e ValidationError) Error() string {
	var where []string
	if e.InvoiceID != "" {
		where = append(where, "invoice "+e.InvoiceID)
	}
	if e.Record != "" {
		where = append(where, fmt.Sprintf("%s record %d", e.Record, e.Line))
	} else if e.Line > 0 {
		where = append(where, fmt.Sprintf("line %d", e.Line))
	}
	if e.Field != "" {
		where = append(where, "field "+e.Field)
	}
	if len(where) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Description)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, strings.Join(where, ", "), e.Description)
}

// ValidationErrors is the full list of problems found in one pass.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(msgs, "; "))
}

// Is reports whether target is ErrValidation.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Kinds returns the distinct kinds present, in first-seen order.
func (v ValidationErrors) Kinds() []ErrorKind {
	var kinds []ErrorKind
	seen := make(map[ErrorKind]bool)
	for _, e := range v {
		if !seen[e.Kind] {
			seen[e.Kind] = true
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

// HasKind reports whether err carries a validation failure of the given kind.
func HasKind(err error, kind ErrorKind) bool {
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, e := range verrs {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// InvoiceConflict names an invoice that could not be reserved.
type InvoiceConflict struct {
	ID          string
	Status      InvoiceStatus
	Reservation string
}

// ConflictError is returned when any requested invoice is already reserved
// or paid. No invoice changes state when it is returned.
type ConflictError struct {
	Invoices []InvoiceConflict
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.Invoices))
	for i, c := range e.Invoices {
		parts[i] = fmt.Sprintf("%s (%s)", c.ID, c.Status)
	}
	return fmt.Sprintf("%s: %s", ErrConflict, strings.Join(parts, ", "))
}

// Is reports whether target is ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// IDs returns the conflicting invoice ids.
func (e *ConflictError) IDs() []string {
	ids := make([]string, len(e.Invoices))
	for i, c := range e.Invoices {
		ids[i] = c.ID
	}
	return ids
}

// PersistenceError reports a failed storage step. The operation is safe to
// retry: reserved invoices stay reserved until the batch is durable.
type PersistenceError struct {
	Op          string
	Reservation string
	BatchID     string
	Err         error
}

func (e *PersistenceError) Error() string {
	msg := fmt.Sprintf("%s during %s (retry with reservation %s)", ErrPersistence, e.Op, e.Reservation)
	if e.BatchID != "" {
		msg += ", batch " + e.BatchID
	}
	return msg + ": " + e.Err.Error()
}

// Is reports whether target is ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
