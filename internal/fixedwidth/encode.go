package fixedwidth

import (
	"bytes"
	"fmt"
	"math/bits"
	"strconv"
	"time"

	"github.com/yakov55994/manage-sub003/internal/id"
	"github.com/yakov55994/manage-sub003/internal/model"
)

// Data source names a layout field can refer to.
const (
	srcInstituteID   = "institute_id"
	srcSenderID      = "sender_id"
	srcExecutionDate = "execution_date"
	srcRecordCount   = "record_count"
	srcTotalAmount   = "total_amount"
	srcChecksum      = "checksum"
	srcCompanyName   = "company_name"
	srcSequence      = "sequence"
	srcBankCode      = "bank_code"
	srcBranchCode    = "branch_code"
	srcAccountNumber = "account_number"
	srcAmount        = "amount"
	srcPayee         = "payee"
	srcBankName      = "bank_name"
	srcInvoiceRefs   = "invoice_refs"
	srcProjectRefs   = "project_refs"
)

// Descriptive sources may be truncated; everything else fails on overflow.
var truncatable = set(srcCompanyName, srcPayee, srcBankName, srcInvoiceRefs, srcProjectRefs)

// Truncation records descriptive text shortened to fit its field.
type Truncation struct {
	Record   string
	Line     int
	Field    string
	Original string
	Written  string
}

// Encoded is the output of Encode.
type Encoded struct {
	Data        []byte
	Truncations []Truncation
}

type encoder struct {
	layout  Layout
	cs      charset
	eol     string
	batch   *model.Batch
	errs    model.ValidationErrors
	truncs  []Truncation
	buf     bytes.Buffer
	lineIdx int
}

// Encode serializes b according to layout. The batch must satisfy its own
// invariants. All field overflows are collected and returned together as
// model.ValidationErrors; no bytes are returned in that case.
func Encode(layout Layout, b *model.Batch) (*Encoded, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout %q: %w", layout.Name, err)
	}
	if verrs := b.Validate(); len(verrs) > 0 {
		return nil, verrs
	}

	cs, _ := lookupCharset(layout.Charset)
	eol, _ := layout.lineEnding()
	e := &encoder{layout: layout, cs: cs, eol: eol, batch: b}

	checksum := Checksum(b.Payments, layout.ChecksumModulus)

	e.writeRecord(RecordHeader, layout.Header, e.headerValue)
	for i := range b.Payments {
		line := b.Payments[i]
		e.writeRecord(RecordDetail, layout.Detail, func(src string) string {
			return e.detailValue(line, src)
		})
	}
	e.writeRecord(RecordTrailer, layout.Trailer, func(src string) string {
		if src == srcChecksum {
			return strconv.FormatInt(checksum, 10)
		}
		return e.headerValue(src)
	})

	if len(e.errs) > 0 {
		return nil, e.errs
	}
	return &Encoded{Data: e.buf.Bytes(), Truncations: e.truncs}, nil
}

// Checksum is the sum of sequence × amount over all lines, reduced modulo
// modulus. Weighting by sequence makes reordered lines detectable. A
// modulus below 1 yields 0.
func Checksum(lines []model.PaymentLine, modulus int64) int64 {
	if modulus <= 0 {
		return 0
	}
	m := uint64(modulus)
	var sum uint64
	for _, p := range lines {
		hi, lo := bits.Mul64(uint64(p.Seq)%m, uint64(p.Amount)%m)
		sum = (sum + bits.Rem64(hi, lo, m)) % m
	}
	return int64(sum)
}

func (e *encoder) headerValue(src string) string {
	b := e.batch
	switch src {
	case srcInstituteID:
		return b.Company.InstituteID
	case srcSenderID:
		return b.Company.SenderID
	case srcRecordCount:
		return strconv.Itoa(b.TotalPayments)
	case srcTotalAmount:
		return strconv.FormatInt(b.TotalAmount, 10)
	case srcCompanyName:
		return b.Company.Name
	}
	return ""
}

func (e *encoder) detailValue(p model.PaymentLine, src string) string {
	switch src {
	case srcInstituteID:
		return e.batch.Company.InstituteID
	case srcSequence:
		return strconv.Itoa(p.Seq)
	case srcBankCode:
		return p.BankCode
	case srcBranchCode:
		return p.BranchCode
	case srcAccountNumber:
		return p.AccountNumber
	case srcAmount:
		return strconv.FormatInt(p.Amount, 10)
	case srcPayee:
		return p.Payee
	case srcBankName:
		return p.BankName
	case srcInvoiceRefs:
		return p.InvoiceRefs()
	case srcProjectRefs:
		return p.ProjectRefList()
	}
	return ""
}

func (e *encoder) writeRecord(rt string, r Record, value func(src string) string) {
	for _, f := range r.Fields {
		e.buf.Write(e.field(rt, f, value))
	}
	e.buf.WriteString(e.eol)
	e.lineIdx++
}

func (e *encoder) field(rt string, f Field, value func(src string) string) []byte {
	if f.literal() {
		return fit([]byte(f.Value), f)
	}

	switch f.Kind {
	case KindDate:
		return fit([]byte(e.date(f)), f)

	case KindNumeric:
		v := id.NormalizeCode(value(f.Name))
		if !id.IsDigits(v) {
			e.fail(model.KindInvalidField, rt, f, fmt.Sprintf("value %q is not an unsigned number", v))
			return fit(nil, f)
		}
		if len(v) > f.Length {
			e.fail(model.KindFieldOverflow, rt, f, fmt.Sprintf("value %s needs %d digits, field holds %d", v, len(v), f.Length))
			return fit(nil, f)
		}
		return fit([]byte(v), f)

	default:
		orig := value(f.Name)
		raw := e.cs.encode(orig)
		if len(raw) <= f.Length {
			return fit(raw, f)
		}
		if !truncatable[f.Name] {
			e.fail(model.KindFieldOverflow, rt, f, fmt.Sprintf("value %q is %d bytes, field holds %d", orig, len(raw), f.Length))
			return fit(nil, f)
		}
		raw = raw[:f.Length]
		e.truncs = append(e.truncs, Truncation{
			Record:   rt,
			Line:     e.lineIdx,
			Field:    f.Name,
			Original: orig,
			Written:  e.cs.decode(raw),
		})
		return raw
	}
}

func (e *encoder) date(f Field) string {
	var t time.Time
	if f.Name == srcExecutionDate {
		t = e.batch.ExecutionDate
	}
	return t.Format(f.dateFormat())
}

func (e *encoder) fail(kind model.ErrorKind, rt string, f Field, desc string) {
	e.errs = append(e.errs, model.ValidationError{
		Kind:        kind,
		Field:       f.Name,
		Record:      rt,
		Line:        e.lineIdx,
		Description: desc,
	})
}

// fit pads v to the field width. v must not exceed the width.
func fit(v []byte, f Field) []byte {
	if len(v) >= f.Length {
		return v[:f.Length]
	}
	out := make([]byte, f.Length)
	padding := f.Length - len(v)
	if f.rightAligned() {
		fill(out[:padding], f.pad())
		copy(out[padding:], v)
	} else {
		copy(out, v)
		fill(out[len(v):], f.pad())
	}
	return out
}

func fill(b []byte, c byte) {
	for i := range b {
		b[i] = c
	}
}
