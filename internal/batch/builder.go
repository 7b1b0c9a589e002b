// Package batch assembles payment lines into batches and drives the
// reserve, encode, persist and mark-paid pipeline.
package batch

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yakov55994/manage-sub003/internal/id"
	"github.com/yakov55994/manage-sub003/internal/model"
)

// BuildParams are the inputs of Build.
type BuildParams struct {
	Reservation   string
	Lines         []model.PaymentLine
	Company       model.CompanyInfo
	ExecutionDate time.Time
	Actor         string
	Now           time.Time
}

// Build assembles a batch from numbered payment lines. It is pure: the same
// params always produce the same batch.
func Build(p BuildParams) (*model.Batch, error) {
	verrs := ValidateCompany(p.Company)
	if p.ExecutionDate.IsZero() {
		verrs = append(verrs, model.ValidationError{
			Kind:        model.KindInvalidDate,
			Field:       "execution_date",
			Description: "execution date is required",
		})
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	lines := make([]model.PaymentLine, len(p.Lines))
	for i, l := range p.Lines {
		l.InvoiceIDs = append([]string(nil), l.InvoiceIDs...)
		l.ProjectRefs = append([]string(nil), l.ProjectRefs...)
		lines[i] = l
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Seq < lines[j].Seq })

	b := &model.Batch{
		Reservation:   p.Reservation,
		ExecutionDate: Day(p.ExecutionDate),
		GeneratedAt:   p.Now.UTC().Truncate(time.Second),
		GeneratedBy:   p.Actor,
		Company:       p.Company,
		Payments:      lines,
		TotalPayments: len(lines),
	}
	for _, l := range lines {
		b.TotalAmount += l.Amount
		b.InvoiceIDs = append(b.InvoiceIDs, l.InvoiceIDs...)
	}
	sort.Slice(b.InvoiceIDs, func(i, j int) bool { return id.Compare(b.InvoiceIDs[i], b.InvoiceIDs[j]) < 0 })
	b.FileName = id.FormatFileName(p.Company.InstituteID, p.Company.SenderID, b.ExecutionDate)

	if verrs := b.Validate(); len(verrs) > 0 {
		return nil, verrs
	}
	return b, nil
}

// ValidateCompany checks the identifiers assigned by the clearing house.
func ValidateCompany(c model.CompanyInfo) model.ValidationErrors {
	var errs model.ValidationErrors
	if !id.IsDigits(c.InstituteID) {
		errs = append(errs, model.ValidationError{
			Kind:        model.KindInvalidCompany,
			Field:       "institute_id",
			Description: fmt.Sprintf("institute id %q must be numeric", c.InstituteID),
		})
	}
	if !id.IsDigits(c.SenderID) {
		errs = append(errs, model.ValidationError{
			Kind:        model.KindInvalidCompany,
			Field:       "sender_id",
			Description: fmt.Sprintf("sender id %q must be numeric", c.SenderID),
		})
	}
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, model.ValidationError{
			Kind:        model.KindInvalidCompany,
			Field:       "name",
			Description: "company name is required",
		})
	}
	return errs
}

// Day returns the calendar date of t as midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
