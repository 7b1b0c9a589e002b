package model

import "time"

// InvoiceStatus is the payment state of an invoice.
type InvoiceStatus string

const (
	InvoicePayable  InvoiceStatus = "payable"
	InvoiceReserved InvoiceStatus = "reserved"
	InvoicePaid     InvoiceStatus = "paid"
)

// Valid reports whether s is a known status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoicePayable, InvoiceReserved, InvoicePaid:
		return true
	}
	return false
}

// Invoice is an approved supplier invoice as seen by the payment engine.
type Invoice struct {
	ID            string
	Payee         string
	BankCode      string
	BranchCode    string
	AccountNumber string
	Amount        int64 // minor currency units
	ProjectRef    string
	Status        InvoiceStatus
	Reservation   string // token of the batch run holding the invoice, empty when payable
	ReservedAt    time.Time
	PaidAt        time.Time
}
