package fixedwidth

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakov55994/manage-sub003/internal/model"
)

func exampleBatch() *model.Batch {
	return &model.Batch{
		ExecutionDate: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Company:       model.CompanyInfo{InstituteID: "12345678", SenderID: "001", Name: "Acme Projects Ltd"},
		Payments: []model.PaymentLine{
			{Seq: 1, Payee: "P1", BankCode: "10", BranchCode: "800", AccountNumber: "123", BankName: "Bank Leumi",
				Amount: 15000, InvoiceIDs: []string{"A", "B"}, ProjectRefs: []string{"PRJ-1"}},
			{Seq: 2, Payee: "P2", BankCode: "12", BranchCode: "500", AccountNumber: "456", BankName: "Bank Hapoalim",
				Amount: 7500, InvoiceIDs: []string{"C"}, ProjectRefs: []string{"PRJ-2"}},
		},
		InvoiceIDs:    []string{"A", "B", "C"},
		TotalAmount:   22500,
		TotalPayments: 2,
	}
}

func records(t *testing.T, data []byte) []string {
	t.Helper()
	require.True(t, bytes.HasSuffix(data, []byte("\r\n")))
	return strings.Split(strings.TrimSuffix(string(data), "\r\n"), "\r\n")
}

func TestEncode_Structure(t *testing.T) {
	enc, err := Encode(DefaultLayout(), exampleBatch())
	require.NoError(t, err)
	assert.Empty(t, enc.Truncations)

	recs := records(t, enc.Data)
	require.Len(t, recs, 4, "header + 2 details + trailer")
	for i, r := range recs {
		assert.Len(t, r, 128, "record %d width", i)
	}

	assert.Equal(t, "K"+"12345678"+"001"+"20250115"+"000002", recs[0][:26])
	assert.Equal(t, "Acme Projects Ltd", strings.TrimRight(recs[0][26:56], " "))

	// Detail 1: sequence, bank, branch, account, zero-padded amount.
	d := recs[1]
	assert.Equal(t, "1", d[0:1])
	assert.Equal(t, "12345678", d[1:9])
	assert.Equal(t, "000001", d[9:15])
	assert.Equal(t, "10", d[15:17])
	assert.Equal(t, "800", d[17:20])
	assert.Equal(t, "000000123", d[20:29])
	assert.Equal(t, "0000000015000", d[29:42])
	assert.Equal(t, "P1              ", d[42:58])
	assert.Equal(t, "A,B", strings.TrimRight(d[58:98], " "))

	tr := recs[3]
	assert.Equal(t, "5", tr[0:1])
	assert.Equal(t, "000002", tr[17:23])
	assert.Equal(t, "000000000022500", tr[23:38])
	assert.Equal(t, "0000030000", tr[38:48], "1*15000 + 2*7500")
}

func TestEncode_Deterministic(t *testing.T) {
	first, err := Encode(DefaultLayout(), exampleBatch())
	require.NoError(t, err)
	second, err := Encode(DefaultLayout(), exampleBatch())
	require.NoError(t, err)
	assert.Equal(t, first.Data, second.Data)
}

func TestEncode_AmountOverflow(t *testing.T) {
	b := exampleBatch()
	b.Payments[1].Amount = 99_999_999_999_999 // 14 digits, field holds 13
	b.TotalAmount = b.Payments[0].Amount + b.Payments[1].Amount

	_, err := Encode(DefaultLayout(), b)
	require.Error(t, err)
	assert.True(t, model.HasKind(err, model.KindFieldOverflow))

	var verrs model.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "amount", verrs[0].Field)
	assert.Equal(t, RecordDetail, verrs[0].Record)
	assert.Equal(t, 2, verrs[0].Line)
}

func TestEncode_CollectsAllOverflows(t *testing.T) {
	b := exampleBatch()
	b.Payments[0].AccountNumber = "1234567890"
	b.Payments[1].BankCode = "123"
	b.Company.InstituteID = "123456789"

	_, err := Encode(DefaultLayout(), b)
	var verrs model.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	fields := make([]string, len(verrs))
	for i, e := range verrs {
		fields[i] = e.Record + "." + e.Field
	}
	assert.Equal(t, []string{
		"header.institute_id",
		"detail.institute_id",
		"detail.account_number",
		"detail.institute_id",
		"detail.bank_code",
		"trailer.institute_id",
	}, fields)
}

func TestEncode_LeadingZerosDoNotOverflow(t *testing.T) {
	b := exampleBatch()
	b.Payments[0].AccountNumber = "0000000000123"
	enc, err := Encode(DefaultLayout(), b)
	require.NoError(t, err)
	assert.Equal(t, "000000123", records(t, enc.Data)[1][20:29])
}

func TestEncode_NonNumericIdentifier(t *testing.T) {
	b := exampleBatch()
	b.Payments[0].AccountNumber = "12-34"
	_, err := Encode(DefaultLayout(), b)
	assert.True(t, model.HasKind(err, model.KindInvalidField))
}

func TestEncode_TruncatesDescriptiveText(t *testing.T) {
	b := exampleBatch()
	b.Payments[0].Payee = "A Very Long Supplier Name Ltd"
	enc, err := Encode(DefaultLayout(), b)
	require.NoError(t, err)

	require.Len(t, enc.Truncations, 1)
	tr := enc.Truncations[0]
	assert.Equal(t, RecordDetail, tr.Record)
	assert.Equal(t, 1, tr.Line)
	assert.Equal(t, "payee", tr.Field)
	assert.Equal(t, "A Very Long Supp", tr.Written)
	assert.Equal(t, "A Very Long Supplier Name Ltd", tr.Original)
	assert.Len(t, records(t, enc.Data)[1], 128)
}

func TestEncode_HebrewIsSingleByte(t *testing.T) {
	b := exampleBatch()
	b.Payments[0].Payee = "כהן אספקה"
	enc, err := Encode(DefaultLayout(), b)
	require.NoError(t, err)

	recs := bytes.Split(bytes.TrimSuffix(enc.Data, []byte("\r\n")), []byte("\r\n"))
	assert.Len(t, recs[1], 128)

	f, err := Decode(DefaultLayout(), enc.Data)
	require.NoError(t, err)
	assert.Equal(t, "כהן אספקה", f.Details[0]["payee"])
}

func TestEncode_UnencodableRunes(t *testing.T) {
	b := exampleBatch()
	b.Payments[0].Payee = "Café→"
	enc, err := Encode(DefaultLayout(), b)
	require.NoError(t, err)
	f, err := Decode(DefaultLayout(), enc.Data)
	require.NoError(t, err)
	assert.Equal(t, "Caf??", f.Details[0]["payee"])
}

func TestEncode_RejectsInconsistentBatch(t *testing.T) {
	b := exampleBatch()
	b.TotalAmount++
	_, err := Encode(DefaultLayout(), b)
	assert.True(t, model.HasKind(err, model.KindInvalidAmount))
}

func TestEncode_InvalidLayout(t *testing.T) {
	l := DefaultLayout()
	l.ChecksumModulus = 0
	_, err := Encode(l, exampleBatch())
	assert.Error(t, err)
}

func TestChecksum(t *testing.T) {
	lines := []model.PaymentLine{{Seq: 1, Amount: 10}, {Seq: 2, Amount: 20}, {Seq: 3, Amount: 30}}
	assert.Equal(t, int64(140), Checksum(lines, 1_000_000_007))
	assert.Equal(t, int64(140%97), Checksum(lines, 97))

	big := []model.PaymentLine{{Seq: 999_999, Amount: 9_000_000_000_000_000}}
	got := Checksum(big, 1_000_000_007)
	assert.GreaterOrEqual(t, got, int64(0))
	assert.Less(t, got, int64(1_000_000_007))

	assert.Zero(t, Checksum(lines, 0))
	assert.Zero(t, Checksum(lines, -5))
}
