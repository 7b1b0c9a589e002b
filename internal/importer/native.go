package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/yakov55994/manage-sub003/internal/model"
)

// NativeHeader is the header of the paybatch import format.
const NativeHeader = "invoice_id,payee,bank_code,branch_code,account_number,amount,project_ref"

const (
	nativeNumFields  = 7
	nativeColID      = 0
	nativeColPayee   = 1
	nativeColBank    = 2
	nativeColBranch  = 3
	nativeColAccount = 4
	nativeColAmount  = 5
	nativeColProject = 6
)

// NativeParser parses the paybatch import format, amounts in major units
// with at most two decimals.
type NativeParser struct{}

// Format returns the parser name.
func (p *NativeParser) Format() string { return "paybatch" }

// Detect matches the exact native header.
func (p *NativeParser) Detect(header []string) bool {
	return strings.Join(header, ",") == NativeHeader
}

// Parse reads a paybatch CSV and returns payable invoices.
func (p *NativeParser) Parse(r io.Reader) ([]model.Invoice, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = nativeNumFields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading paybatch CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if got := strings.Join(records[0], ","); got != NativeHeader {
		return nil, fmt.Errorf("unexpected header %q, want %q", got, NativeHeader)
	}

	var invs []model.Invoice
	for i, rec := range records[1:] {
		amount, err := model.ParseAmount(rec[nativeColAmount])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing amount: %w", i+2, err)
		}
		if rec[nativeColID] == "" {
			return nil, fmt.Errorf("row %d: missing invoice_id", i+2)
		}
		invs = append(invs, model.Invoice{
			ID:            rec[nativeColID],
			Payee:         rec[nativeColPayee],
			BankCode:      rec[nativeColBank],
			BranchCode:    rec[nativeColBranch],
			AccountNumber: rec[nativeColAccount],
			Amount:        amount,
			ProjectRef:    rec[nativeColProject],
			Status:        model.InvoicePayable,
		})
	}
	return invs, nil
}
