package fixedwidth

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yakov55994/manage-sub003/internal/model"
)

// ErrMismatch is returned by Verify when the trailer disagrees with the
// detail records.
var ErrMismatch = errors.New("fixedwidth: trailer does not match details")

// Values maps field names of one record to their unpadded text.
type Values map[string]string

// File is a decoded clearing file.
type File struct {
	Header  Values
	Details []Values
	Trailer Values
}

// Summary holds the reconciliation fields of a trailer.
type Summary struct {
	RecordCount int
	TotalAmount int64
	Checksum    int64
}

// Decode splits data into records and fields according to layout.
func Decode(layout Layout, data []byte) (*File, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout %q: %w", layout.Name, err)
	}
	cs, _ := lookupCharset(layout.Charset)
	eol, _ := layout.lineEnding()

	if !bytes.HasSuffix(data, []byte(eol)) {
		return nil, fmt.Errorf("file does not end with a line terminator")
	}
	lines := bytes.Split(data[:len(data)-len(eol)], []byte(eol))
	if len(lines) < 2 {
		return nil, fmt.Errorf("expected header and trailer, got %d records", len(lines))
	}

	f := &File{}
	var err error
	if f.Header, err = decodeRecord(cs, RecordHeader, layout.Header, lines[0], 0); err != nil {
		return nil, err
	}
	last := len(lines) - 1
	for i := 1; i < last; i++ {
		v, err := decodeRecord(cs, RecordDetail, layout.Detail, lines[i], i)
		if err != nil {
			return nil, err
		}
		f.Details = append(f.Details, v)
	}
	if f.Trailer, err = decodeRecord(cs, RecordTrailer, layout.Trailer, lines[last], last); err != nil {
		return nil, err
	}
	return f, nil
}

func decodeRecord(cs charset, rt string, r Record, line []byte, idx int) (Values, error) {
	if len(line) != r.Width() {
		return nil, fmt.Errorf("%s record %d: length %d, want %d", rt, idx, len(line), r.Width())
	}
	v := make(Values, len(r.Fields))
	pos := 0
	for _, f := range r.Fields {
		raw := line[pos : pos+f.Length]
		pos += f.Length
		text := cs.decode(raw)
		pad := string(f.pad())
		if f.rightAligned() {
			text = strings.TrimLeft(text, pad)
			if text == "" && f.Kind == KindNumeric {
				text = "0"
			}
		} else {
			text = strings.TrimRight(text, pad)
		}
		if _, dup := v[f.Name]; !dup {
			v[f.Name] = text
		}
	}
	return v, nil
}

// Summary parses the trailer's record count, total amount and checksum.
func (f *File) Summary() (Summary, error) {
	count, err := strconv.Atoi(f.Trailer[srcRecordCount])
	if err != nil {
		return Summary{}, fmt.Errorf("parsing trailer record_count: %w", err)
	}
	total, err := strconv.ParseInt(f.Trailer[srcTotalAmount], 10, 64)
	if err != nil {
		return Summary{}, fmt.Errorf("parsing trailer total_amount: %w", err)
	}
	sum, err := strconv.ParseInt(f.Trailer[srcChecksum], 10, 64)
	if err != nil {
		return Summary{}, fmt.Errorf("parsing trailer checksum: %w", err)
	}
	return Summary{RecordCount: count, TotalAmount: total, Checksum: sum}, nil
}

// Lines rebuilds the sequence and amount of each detail record. Records
// without a sequence field are numbered by position.
func (f *File) Lines() ([]model.PaymentLine, error) {
	lines := make([]model.PaymentLine, len(f.Details))
	for i, d := range f.Details {
		amount, err := strconv.ParseInt(d[srcAmount], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("detail %d: parsing amount: %w", i+1, err)
		}
		seq := i + 1
		if s, ok := d[srcSequence]; ok {
			if seq, err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("detail %d: parsing sequence: %w", i+1, err)
			}
		}
		lines[i] = model.PaymentLine{
			Seq:           seq,
			Amount:        amount,
			BankCode:      d[srcBankCode],
			BranchCode:    d[srcBranchCode],
			AccountNumber: d[srcAccountNumber],
			Payee:         d[srcPayee],
		}
	}
	return lines, nil
}

// Verify recomputes count, total and checksum from the detail records and
// compares them with the trailer, as the receiving system would.
func Verify(layout Layout, f *File) (Summary, error) {
	if layout.ChecksumModulus <= 0 {
		return Summary{}, fmt.Errorf("invalid layout %q: checksum_modulus must be positive, got %d", layout.Name, layout.ChecksumModulus)
	}
	s, err := f.Summary()
	if err != nil {
		return Summary{}, err
	}
	lines, err := f.Lines()
	if err != nil {
		return Summary{}, err
	}

	var total int64
	for _, l := range lines {
		total += l.Amount
	}
	var problems []string
	if s.RecordCount != len(lines) {
		problems = append(problems, fmt.Sprintf("record_count %d, found %d details", s.RecordCount, len(lines)))
	}
	if hc, ok := f.Header[srcRecordCount]; ok && hc != strconv.Itoa(len(lines)) {
		problems = append(problems, fmt.Sprintf("header record_count %s, found %d details", hc, len(lines)))
	}
	if s.TotalAmount != total {
		problems = append(problems, fmt.Sprintf("total_amount %d, details sum to %d", s.TotalAmount, total))
	}
	if want := Checksum(lines, layout.ChecksumModulus); s.Checksum != want {
		problems = append(problems, fmt.Sprintf("checksum %d, computed %d", s.Checksum, want))
	}
	if len(problems) > 0 {
		return s, fmt.Errorf("%w: %s", ErrMismatch, strings.Join(problems, "; "))
	}
	return s, nil
}
