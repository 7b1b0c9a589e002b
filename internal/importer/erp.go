package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/yakov55994/manage-sub003/internal/model"
)

// ERPParser parses the accounts-payable export of the project ERP. Only
// approved invoices in the local currency are imported.
type ERPParser struct{}

const (
	erpNumFields    = 9
	erpColInvoice   = 0
	erpColSupplier  = 1
	erpColBank      = 2
	erpColBranch    = 3
	erpColAccount   = 4
	erpColAmount    = 5
	erpColCurrency  = 6
	erpColProject   = 7
	erpColApproved  = 8
	erpCurrency     = "ILS"
	erpApprovedFlag = "Y"
)

// Format returns the parser name.
func (p *ERPParser) Format() string { return "erp" }

// Detect matches the nine-column export whose last column is the approval flag.
func (p *ERPParser) Detect(header []string) bool {
	return len(header) == erpNumFields && strings.EqualFold(strings.TrimSpace(header[erpColApproved]), "approved")
}

// Parse reads an ERP export and returns payable invoices.
func (p *ERPParser) Parse(r io.Reader) ([]model.Invoice, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = erpNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading erp CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var invs []model.Invoice
	for i, rec := range records[1:] {
		if !strings.EqualFold(strings.TrimSpace(rec[erpColApproved]), erpApprovedFlag) {
			continue
		}
		inv, err := parseERPRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		invs = append(invs, inv)
	}
	return invs, nil
}

func parseERPRow(rec []string) (model.Invoice, error) {
	if cur := strings.TrimSpace(rec[erpColCurrency]); cur != erpCurrency {
		return model.Invoice{}, fmt.Errorf("unsupported currency %q", cur)
	}
	// The export groups thousands: "1,234.50".
	raw := strings.ReplaceAll(strings.TrimSpace(rec[erpColAmount]), ",", "")
	amount, err := model.ParseAmount(raw)
	if err != nil {
		return model.Invoice{}, fmt.Errorf("parsing amount %q: %w", rec[erpColAmount], err)
	}
	return model.Invoice{
		ID:            makeERPRef(rec[erpColInvoice]),
		Payee:         strings.TrimSpace(rec[erpColSupplier]),
		BankCode:      strings.TrimSpace(rec[erpColBank]),
		BranchCode:    strings.TrimSpace(rec[erpColBranch]),
		AccountNumber: strings.Map(digitsOnly, rec[erpColAccount]),
		Amount:        amount,
		ProjectRef:    strings.TrimSpace(rec[erpColProject]),
		Status:        model.InvoicePayable,
	}, nil
}

// makeERPRef normalizes an ERP invoice number like " inv 0042 " to "INV-0042".
func makeERPRef(s string) string {
	fields := strings.Fields(strings.ToUpper(s))
	return strings.Join(fields, "-")
}

// digitsOnly drops the separators ERP users type into account numbers.
func digitsOnly(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}
