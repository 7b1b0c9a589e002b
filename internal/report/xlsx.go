// Package report renders a human-readable companion to a clearing file.
package report

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/yakov55994/manage-sub003/internal/model"
)

// SheetName is the worksheet holding the payment table.
const SheetName = "Payments"

// Renderer produces a report for a batch. Implementations must read the
// batch aggregate only, never the encoded file.
type Renderer interface {
	Render(ctx context.Context, b *model.Batch) (name string, data []byte, err error)
}

var columns = []struct {
	title string
	width float64
}{
	{"Seq", 6},
	{"Payee", 28},
	{"Bank", 6},
	{"Bank name", 22},
	{"Branch", 8},
	{"Account", 14},
	{"Amount", 16},
	{"Invoices", 30},
	{"Projects", 20},
}

// Row numbers of the fixed parts of the sheet.
const (
	tableHeaderRow = 6
	firstDataRow   = tableHeaderRow + 1
)

// XLSXRenderer renders a single-sheet Excel workbook.
type XLSXRenderer struct{}

// FileName derives the report name from the clearing file name.
func FileName(clearingFile string) string {
	return strings.TrimSuffix(clearingFile, filepath.Ext(clearingFile)) + ".xlsx"
}

// Render implements Renderer.
func (XLSXRenderer) Render(ctx context.Context, b *model.Batch) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return "", nil, fmt.Errorf("naming sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", nil, fmt.Errorf("creating style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return "", nil, fmt.Errorf("creating style: %w", err)
	}
	boldMoney, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 4})
	if err != nil {
		return "", nil, fmt.Errorf("creating style: %w", err)
	}

	summary := [][]any{
		{"Company", b.Company.Name},
		{"Institute / sender", b.Company.InstituteID + " / " + b.Company.SenderID},
		{"Execution date", b.ExecutionDate.Format("2006-01-02")},
		{"Clearing file", b.FileName},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return "", nil, fmt.Errorf("writing summary: %w", err)
		}
	}
	if err := f.SetCellStyle(SheetName, "A1", fmt.Sprintf("A%d", len(summary)), bold); err != nil {
		return "", nil, fmt.Errorf("styling summary: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c.title
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, c.width); err != nil {
			return "", nil, fmt.Errorf("sizing columns: %w", err)
		}
	}
	start, _ := excelize.CoordinatesToCellName(1, tableHeaderRow)
	end, _ := excelize.CoordinatesToCellName(len(columns), tableHeaderRow)
	if err := f.SetSheetRow(SheetName, start, &header); err != nil {
		return "", nil, fmt.Errorf("writing header: %w", err)
	}
	if err := f.SetCellStyle(SheetName, start, end, bold); err != nil {
		return "", nil, fmt.Errorf("styling header: %w", err)
	}

	for i, p := range b.Payments {
		row := []any{
			p.Seq,
			p.Payee,
			p.BankCode,
			p.BankName,
			p.BranchCode,
			p.AccountNumber,
			major(p.Amount),
			p.InvoiceRefs(),
			p.ProjectRefList(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, firstDataRow+i)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return "", nil, fmt.Errorf("writing payment %d: %w", p.Seq, err)
		}
	}

	totalRow := firstDataRow + len(b.Payments)
	totals := []any{"Total", fmt.Sprintf("%d payments", b.TotalPayments), nil, nil, nil, nil, major(b.TotalAmount)}
	cell, _ := excelize.CoordinatesToCellName(1, totalRow)
	if err := f.SetSheetRow(SheetName, cell, &totals); err != nil {
		return "", nil, fmt.Errorf("writing totals: %w", err)
	}
	if err := f.SetCellStyle(SheetName, cell, fmt.Sprintf("F%d", totalRow), bold); err != nil {
		return "", nil, fmt.Errorf("styling totals: %w", err)
	}
	if len(b.Payments) > 0 {
		if err := f.SetCellStyle(SheetName, fmt.Sprintf("G%d", firstDataRow), fmt.Sprintf("G%d", totalRow-1), money); err != nil {
			return "", nil, fmt.Errorf("styling amounts: %w", err)
		}
	}
	if err := f.SetCellStyle(SheetName, fmt.Sprintf("G%d", totalRow), fmt.Sprintf("G%d", totalRow), boldMoney); err != nil {
		return "", nil, fmt.Errorf("styling totals: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return "", nil, fmt.Errorf("writing workbook: %w", err)
	}
	return FileName(b.FileName), buf.Bytes(), nil
}

// major converts minor units to a float for spreadsheet display only.
func major(minor int64) float64 {
	return decimal.New(minor, -model.MinorUnitExponent).InexactFloat64()
}
