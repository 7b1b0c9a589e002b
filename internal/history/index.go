package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/yakov55994/manage-sub003/internal/model"
)

// Entry is one row of the batch index.
type Entry struct {
	ID            string
	Reservation   string
	ExecutionDate time.Time
	CreatedAt     time.Time
	FileName      string
	ReportName    string
	TotalAmount   int64
	TotalPayments int
	Digest        string
}

// Header is the CSV header for index.csv.
const Header = "batch_id,reservation,execution_date,created_at,file_name,report_name,total_amount,total_payments,digest"

const (
	numFields        = 9
	colID            = 0
	colReservation   = 1
	colExecDate      = 2
	colCreatedAt     = 3
	colFileName      = 4
	colReportName    = 5
	colTotalAmount   = 6
	colTotalPayments = 7
	colDigest        = 8

	dateFormat = "2006-01-02"
)

func entryOf(b *model.Batch) Entry {
	return Entry{
		ID:            b.ID,
		Reservation:   b.Reservation,
		ExecutionDate: b.ExecutionDate,
		CreatedAt:     b.CreatedAt,
		FileName:      b.FileName,
		ReportName:    b.ReportName,
		TotalAmount:   b.TotalAmount,
		TotalPayments: b.TotalPayments,
		Digest:        b.Digest,
	}
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colID] = e.ID
	row[colReservation] = e.Reservation
	row[colExecDate] = e.ExecutionDate.Format(dateFormat)
	row[colCreatedAt] = e.CreatedAt.UTC().Format(time.RFC3339)
	row[colFileName] = e.FileName
	row[colReportName] = e.ReportName
	row[colTotalAmount] = model.FormatAmount(e.TotalAmount)
	row[colTotalPayments] = strconv.Itoa(e.TotalPayments)
	row[colDigest] = e.Digest
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	date, err := time.Parse(dateFormat, record[colExecDate])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing execution_date %q: %w", record[colExecDate], err)
	}
	created, err := time.Parse(time.RFC3339, record[colCreatedAt])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing created_at %q: %w", record[colCreatedAt], err)
	}
	total, err := model.ParseAmount(record[colTotalAmount])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing total_amount: %w", err)
	}
	count, err := strconv.Atoi(record[colTotalPayments])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing total_payments %q: %w", record[colTotalPayments], err)
	}
	return Entry{
		ID:            record[colID],
		Reservation:   record[colReservation],
		ExecutionDate: date,
		CreatedAt:     created,
		FileName:      record[colFileName],
		ReportName:    record[colReportName],
		TotalAmount:   total,
		TotalPayments: count,
		Digest:        record[colDigest],
	}, nil
}

// ReadIndex parses index.csv content.
func ReadIndex(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading index CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	entries := make([]Entry, 0, len(records)-1)
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func writeEntries(w io.Writer, header bool, entries ...Entry) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
