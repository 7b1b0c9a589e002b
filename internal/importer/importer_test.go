package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakov55994/manage-sub003/internal/model"
)

func TestERPParser_Parse(t *testing.T) {
	f, err := os.Open("../../testdata/erp_invoices.csv")
	require.NoError(t, err)
	defer f.Close()

	p := &ERPParser{}
	invs, err := p.Parse(f)
	require.NoError(t, err)
	require.Len(t, invs, 3, "unapproved rows are skipped")

	assert.Equal(t, "INV-1001", invs[0].ID)
	assert.Equal(t, "Cohen Supplies", invs[0].Payee)
	assert.Equal(t, "12345", invs[0].AccountNumber)
	assert.Equal(t, int64(125000), invs[0].Amount)
	assert.Equal(t, "PRJ-7", invs[0].ProjectRef)
	assert.Equal(t, model.InvoicePayable, invs[0].Status)

	assert.Equal(t, int64(30050), invs[1].Amount)
	assert.Equal(t, "INV-1004", invs[2].ID)
	assert.Equal(t, int64(7500), invs[2].Amount)
}

func TestERPParser_EmptyFile(t *testing.T) {
	p := &ERPParser{}
	invs, err := p.Parse(strings.NewReader("Invoice No,Supplier,Supplier Bank,Branch,Account,Amount Due,Currency,Project,Approved\n"))
	require.NoError(t, err)
	assert.Nil(t, invs)
}

func TestERPParser_BadAmount(t *testing.T) {
	csv := "h1,h2,h3,h4,h5,h6,h7,h8,h9\nINV 1,S,10,800,1,12.345,ILS,P,Y\n"
	p := &ERPParser{}
	_, err := p.Parse(strings.NewReader(csv))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing amount")
}

func TestERPParser_ForeignCurrency(t *testing.T) {
	csv := "h1,h2,h3,h4,h5,h6,h7,h8,h9\nINV 1,S,10,800,1,12.00,USD,P,Y\n"
	p := &ERPParser{}
	_, err := p.Parse(strings.NewReader(csv))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestMakeERPRef(t *testing.T) {
	assert.Equal(t, "INV-0042", makeERPRef(" inv  0042 "))
	assert.Equal(t, "A17", makeERPRef("a17"))
}

func TestNativeParser_Parse(t *testing.T) {
	data := NativeHeader + "\n" +
		"A,P1,10,800,123,100.00,PRJ-1\n" +
		"B,P1,10,800,123,50,\n"
	p := &NativeParser{}
	invs, err := p.Parse(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, invs, 2)
	assert.Equal(t, int64(10000), invs[0].Amount)
	assert.Equal(t, int64(5000), invs[1].Amount)
	assert.Empty(t, invs[1].ProjectRef)
}

func TestNativeParser_Errors(t *testing.T) {
	p := &NativeParser{}

	_, err := p.Parse(strings.NewReader("a,b,c,d,e,f,g\n"))
	assert.ErrorContains(t, err, "unexpected header")

	_, err = p.Parse(strings.NewReader(NativeHeader + "\nA,P1,10,800,123,1.001,\n"))
	assert.ErrorContains(t, err, "row 2")

	_, err = p.Parse(strings.NewReader(NativeHeader + "\n,P1,10,800,123,1,\n"))
	assert.ErrorContains(t, err, "missing invoice_id")
}

func TestNativeParser_Format(t *testing.T) {
	p := &NativeParser{}
	assert.Equal(t, "paybatch", p.Format())
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&ERPParser{})
	p := r.Get("erp")
	require.NotNil(t, p)
	assert.Equal(t, "erp", p.Format())
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(&ERPParser{})
	assert.NotNil(t, r.Get("ERP"))
	assert.NotNil(t, r.Get("Erp"))
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.NotNil(t, r.Get("erp"))
	assert.NotNil(t, r.Get("paybatch"))
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&ERPParser{})
	assert.Panics(t, func() { r.Register(&ERPParser{}) })
}

func TestScan_FindsCSVs(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(importDir, "erp-export.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "other.txt"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "erp-export.csv", files[0].Name)
}

func TestScan_IgnoresProcessedDir(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	processedDir := filepath.Join(importDir, "processed")
	require.NoError(t, os.MkdirAll(processedDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(importDir, "new.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processedDir, "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "new.csv", files[0].Name)
}

func TestScan_EmptyDir(t *testing.T) {
	dir := t.TempDir()
	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "erp-export.csv"), []byte("data"), 0o644))

	name, err := MarkProcessed(dir, "erp-export.csv")
	require.NoError(t, err)
	assert.Equal(t, "erp-export.csv", name)

	// Source gone.
	_, err = os.Stat(filepath.Join(importDir, "erp-export.csv"))
	assert.True(t, os.IsNotExist(err))

	// Destination exists.
	_, err = os.Stat(filepath.Join(dir, "import", "processed", "erp-export.csv"))
	assert.NoError(t, err)
}

func TestMarkProcessed_CreatesDir(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "a.csv"), []byte("data"), 0o644))

	_, err := MarkProcessed(dir, "a.csv")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "import", "processed"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestMarkProcessed_KeepsEarlierExport(t *testing.T) {
	dir := t.TempDir()
	processed := filepath.Join(dir, "import", "processed")
	require.NoError(t, os.MkdirAll(processed, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(processed, "erp.csv"), []byte("january"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processed, "erp-1.csv"), []byte("february"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "erp.csv"), []byte("march"), 0o644))

	name, err := MarkProcessed(dir, "erp.csv")
	require.NoError(t, err)
	assert.Equal(t, "erp-2.csv", name)

	data, err := os.ReadFile(filepath.Join(processed, "erp.csv"))
	require.NoError(t, err)
	assert.Equal(t, "january", string(data))
	data, err = os.ReadFile(filepath.Join(processed, "erp-2.csv"))
	require.NoError(t, err)
	assert.Equal(t, "march", string(data))
}

func TestRegistry_Formats(t *testing.T) {
	assert.Equal(t, []string{"paybatch", "erp"}, DefaultRegistry().Formats())
}

func TestRegistry_Detect(t *testing.T) {
	r := DefaultRegistry()

	p := r.Detect(strings.Split(NativeHeader, ","))
	require.NotNil(t, p)
	assert.Equal(t, "paybatch", p.Format())

	p = r.Detect([]string{"Invoice No", "Supplier", "Supplier Bank", "Branch", "Account", "Amount Due", "Currency", "Project", " APPROVED "})
	require.NotNil(t, p)
	assert.Equal(t, "erp", p.Format())

	assert.Nil(t, r.Detect([]string{"Date", "Description", "Amount"}))
}

func TestRegistry_ReadFile_DetectsFormat(t *testing.T) {
	invs, p, err := DefaultRegistry().ReadFile("../../testdata/erp_invoices.csv", "")
	require.NoError(t, err)
	assert.Equal(t, "erp", p.Format())
	assert.Len(t, invs, 3)
}

func TestRegistry_ReadFile_StripsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "native.csv")
	data := "\ufeff" + NativeHeader + "\nINV-1,Cohen Supplies,10,800,12345,150.00,PRJ-7\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	invs, p, err := DefaultRegistry().ReadFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, "paybatch", p.Format())
	require.Len(t, invs, 1)
	assert.Equal(t, int64(15000), invs[0].Amount)
}

func TestRegistry_ReadFile_UnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.csv")
	require.NoError(t, os.WriteFile(path, []byte("Date,Description,Amount\n"), 0o644))

	_, _, err := DefaultRegistry().ReadFile(path, "")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, _, err = DefaultRegistry().ReadFile(path, "quickbooks")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
