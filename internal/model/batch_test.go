package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validBatch() *Batch {
	return &Batch{
		Payments: []PaymentLine{
			{Seq: 1, Payee: "P1", Amount: 15000, InvoiceIDs: []string{"A", "B"}},
			{Seq: 2, Payee: "P2", Amount: 7500, InvoiceIDs: []string{"C"}},
		},
		InvoiceIDs:    []string{"A", "B", "C"},
		TotalAmount:   22500,
		TotalPayments: 2,
	}
}

func TestBatchValidate_OK(t *testing.T) {
	assert.Empty(t, validBatch().Validate())
}

func TestBatchValidate_TotalMismatch(t *testing.T) {
	b := validBatch()
	b.TotalAmount = 22499
	errs := b.Validate()
	assert.Equal(t, []ErrorKind{KindInvalidAmount}, errs.Kinds())
}

func TestBatchValidate_CountMismatch(t *testing.T) {
	b := validBatch()
	b.TotalPayments = 3
	errs := b.Validate()
	assert.Len(t, errs, 1)
	assert.Equal(t, "total_payments", errs[0].Field)
}

func TestBatchValidate_InvoiceTwice(t *testing.T) {
	b := validBatch()
	b.Payments[1].InvoiceIDs = []string{"C", "A"}
	errs := b.Validate()
	assert.Len(t, errs, 1)
	assert.Equal(t, "A", errs[0].InvoiceID)
}

func TestBatchValidate_UnknownInvoiceAndSequence(t *testing.T) {
	b := validBatch()
	b.Payments[1].Seq = 5
	b.Payments[1].InvoiceIDs = []string{"C", "Z"}
	errs := b.Validate()
	assert.Equal(t, []ErrorKind{KindInvalidSequence, KindInvoiceNotFound}, errs.Kinds())
}

func TestBatchValidate_Empty(t *testing.T) {
	b := &Batch{}
	assert.True(t, HasKind(b.Validate(), KindEmptyBatch))
}

func TestPaymentLineRefs(t *testing.T) {
	p := PaymentLine{InvoiceIDs: []string{"A", "B"}, ProjectRefs: []string{"PRJ-1"}}
	assert.Equal(t, "A,B", p.InvoiceRefs())
	assert.Equal(t, "PRJ-1", p.ProjectRefList())
}
