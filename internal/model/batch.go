package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RefSeparator joins invoice and project references on a payment line.
const RefSeparator = ","

// CompanyInfo identifies the paying organization to the clearing house.
type CompanyInfo struct {
	InstituteID string `json:"institute_id" yaml:"institute_id"`
	SenderID    string `json:"sender_id" yaml:"sender_id"`
	Name        string `json:"name" yaml:"name"`
}

// PaymentLine is one transfer to a single payee account. Several invoices
// for the same payee and account roll into one line.
type PaymentLine struct {
	Seq           int      `json:"seq"`
	Payee         string   `json:"payee"`
	BankCode      string   `json:"bank_code"`
	BranchCode    string   `json:"branch_code"`
	AccountNumber string   `json:"account_number"`
	BankName      string   `json:"bank_name"`
	Amount        int64    `json:"amount"` // minor currency units
	InvoiceIDs    []string `json:"invoice_ids"`
	ProjectRefs   []string `json:"project_refs"`
}

// InvoiceRefs returns the concatenated invoice references.
func (p PaymentLine) InvoiceRefs() string {
	return strings.Join(p.InvoiceIDs, RefSeparator)
}

// ProjectRefList returns the concatenated project references.
func (p PaymentLine) ProjectRefList() string {
	return strings.Join(p.ProjectRefs, RefSeparator)
}

// Batch is one immutable bundle of payment instructions for a single
// execution date. It is never modified after it has been persisted.
type Batch struct {
	ID            string        `json:"id"`
	Reservation   string        `json:"reservation"`
	ExecutionDate time.Time     `json:"execution_date"`
	GeneratedAt   time.Time     `json:"generated_at"`
	GeneratedBy   string        `json:"generated_by"`
	Company       CompanyInfo   `json:"company"`
	Payments      []PaymentLine `json:"payments"`
	InvoiceIDs    []string      `json:"invoice_ids"`
	TotalAmount   int64         `json:"total_amount"`
	TotalPayments int           `json:"total_payments"`
	FileName      string        `json:"file_name"`
	File          []byte        `json:"-"`
	ReportName    string        `json:"report_name,omitempty"`
	Report        []byte        `json:"-"`
	Digest        string        `json:"digest,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Validate checks the reconciliation invariants of the batch and returns
// every violation found.
func (b *Batch) Validate() ValidationErrors {
	var errs ValidationErrors

	if len(b.Payments) == 0 {
		errs = append(errs, ValidationError{Kind: KindEmptyBatch, Description: "batch has no payments"})
	}

	var total int64
	seen := make(map[string]int, len(b.InvoiceIDs))
	for i, p := range b.Payments {
		if p.Seq != i+1 {
			errs = append(errs, ValidationError{
				Kind:        KindInvalidSequence,
				Line:        i + 1,
				Description: fmt.Sprintf("payment %d has sequence %d", i+1, p.Seq),
			})
		}
		if p.Amount <= 0 {
			errs = append(errs, ValidationError{
				Kind:        KindInvalidAmount,
				Line:        p.Seq,
				Description: fmt.Sprintf("payment amount %d must be positive", p.Amount),
			})
		}
		total += p.Amount
		for _, id := range p.InvoiceIDs {
			seen[id]++
		}
	}

	if total != b.TotalAmount {
		errs = append(errs, ValidationError{
			Kind:        KindInvalidAmount,
			Field:       "total_amount",
			Description: fmt.Sprintf("total %d != sum of payments %d", b.TotalAmount, total),
		})
	}
	if b.TotalPayments != len(b.Payments) {
		errs = append(errs, ValidationError{
			Kind:        KindInvalidSequence,
			Field:       "total_payments",
			Description: fmt.Sprintf("total payments %d != %d lines", b.TotalPayments, len(b.Payments)),
		})
	}

	for _, id := range b.InvoiceIDs {
		if n := seen[id]; n != 1 {
			errs = append(errs, ValidationError{
				Kind:        KindInvoiceNotFound,
				InvoiceID:   id,
				Description: fmt.Sprintf("invoice referenced by %d payment lines", n),
			})
		}
		delete(seen, id)
	}
	extra := make([]string, 0, len(seen))
	for id := range seen {
		extra = append(extra, id)
	}
	sort.Strings(extra)
	for _, id := range extra {
		errs = append(errs, ValidationError{
			Kind:        KindInvoiceNotFound,
			InvoiceID:   id,
			Description: "payment line references an invoice outside the batch",
		})
	}

	return errs
}
