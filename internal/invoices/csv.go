package invoices

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yakov55994/manage-sub003/internal/model"
)

// Header is the CSV header for invoices.csv.
const Header = "invoice_id,payee,bank_code,branch_code,account_number,amount,project_ref,status,reservation,reserved_at,paid_at"

const (
	numFields      = 11
	timeFormat     = time.RFC3339
	colID          = 0
	colPayee       = 1
	colBankCode    = 2
	colBranchCode  = 3
	colAccount     = 4
	colAmount      = 5
	colProjectRef  = 6
	colStatus      = 7
	colReservation = 8
	colReservedAt  = 9
	colPaidAt      = 10
)

// ReadInvoices reads all invoices from an invoices.csv reader.
func ReadInvoices(r io.Reader) ([]model.Invoice, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading invoices CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var invoices []model.Invoice
	for i, rec := range records[1:] {
		inv, err := UnmarshalInvoice(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

// WriteInvoices writes invoices to an invoices.csv writer (including header).
func WriteInvoices(w io.Writer, invoices []model.Invoice) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, inv := range invoices {
		if err := cw.Write(MarshalInvoice(inv)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalInvoice converts an Invoice to a CSV row.
func MarshalInvoice(inv model.Invoice) []string {
	row := make([]string, numFields)
	row[colID] = inv.ID
	row[colPayee] = inv.Payee
	row[colBankCode] = inv.BankCode
	row[colBranchCode] = inv.BranchCode
	row[colAccount] = inv.AccountNumber
	row[colAmount] = model.FormatAmount(inv.Amount)
	row[colProjectRef] = inv.ProjectRef
	row[colStatus] = string(inv.Status)
	row[colReservation] = inv.Reservation
	if !inv.ReservedAt.IsZero() {
		row[colReservedAt] = inv.ReservedAt.UTC().Format(timeFormat)
	}
	if !inv.PaidAt.IsZero() {
		row[colPaidAt] = inv.PaidAt.UTC().Format(timeFormat)
	}
	return row
}

// UnmarshalInvoice converts a CSV row to an Invoice.
func UnmarshalInvoice(record []string) (model.Invoice, error) {
	if len(record) != numFields {
		return model.Invoice{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	if record[colID] == "" {
		return model.Invoice{}, fmt.Errorf("missing invoice_id")
	}

	amount, err := model.ParseAmount(record[colAmount])
	if err != nil {
		return model.Invoice{}, err
	}

	status := model.InvoiceStatus(record[colStatus])
	if status == "" {
		status = model.InvoicePayable
	}
	if !status.Valid() {
		return model.Invoice{}, fmt.Errorf("unknown status %q", record[colStatus])
	}

	var reservedAt, paidAt time.Time
	if record[colReservedAt] != "" {
		reservedAt, err = time.Parse(timeFormat, record[colReservedAt])
		if err != nil {
			return model.Invoice{}, fmt.Errorf("parsing reserved_at %q: %w", record[colReservedAt], err)
		}
	}
	if record[colPaidAt] != "" {
		paidAt, err = time.Parse(timeFormat, record[colPaidAt])
		if err != nil {
			return model.Invoice{}, fmt.Errorf("parsing paid_at %q: %w", record[colPaidAt], err)
		}
	}

	return model.Invoice{
		ID:            record[colID],
		Payee:         record[colPayee],
		BankCode:      record[colBankCode],
		BranchCode:    record[colBranchCode],
		AccountNumber: record[colAccount],
		Amount:        amount,
		ProjectRef:    record[colProjectRef],
		Status:        status,
		Reservation:   record[colReservation],
		ReservedAt:    reservedAt,
		PaidAt:        paidAt,
	}, nil
}
