package fixedwidth

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yakov55994/manage-sub003/internal/id"
)

// Kind is the data type of a field.
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
	KindDate    Kind = "date"
)

const (
	AlignLeft  = "left"
	AlignRight = "right"

	// FillerName marks a blank field when no literal value is given.
	FillerName = "filler"

	defaultDateFormat = "20060102"
)

// Record types, used in errors and truncation reports.
const (
	RecordHeader  = "header"
	RecordDetail  = "detail"
	RecordTrailer = "trailer"
)

// Field is one fixed-width column. Positions follow declaration order.
type Field struct {
	Name   string `yaml:"name"`
	Length int    `yaml:"length"`
	Kind   Kind   `yaml:"kind"`
	Pad    string `yaml:"pad,omitempty"`    // single pad character
	Align  string `yaml:"align,omitempty"`  // left or right
	Value  string `yaml:"value,omitempty"`  // literal content, e.g. a record type code
	Format string `yaml:"format,omitempty"` // time layout for date fields
}

// Record is the ordered field list of one record type.
type Record struct {
	Fields []Field `yaml:"fields"`
}

// Width returns the record length in bytes.
func (r Record) Width() int {
	w := 0
	for _, f := range r.Fields {
		w += f.Length
	}
	return w
}

// Layout describes a complete clearing file format.
type Layout struct {
	Name            string `yaml:"name"`
	Charset         string `yaml:"charset"`
	LineEnding      string `yaml:"line_ending"` // crlf or lf
	ChecksumModulus int64  `yaml:"checksum_modulus"`
	Header          Record `yaml:"header"`
	Detail          Record `yaml:"detail"`
	Trailer         Record `yaml:"trailer"`
}

// Data sources a non-literal field may draw from, per record type.
var sources = map[string]map[string]bool{
	RecordHeader: set(srcInstituteID, srcSenderID, srcExecutionDate, srcRecordCount, srcTotalAmount, srcCompanyName),
	RecordDetail: set(srcInstituteID, srcSequence, srcBankCode, srcBranchCode, srcAccountNumber, srcAmount,
		srcPayee, srcBankName, srcInvoiceRefs, srcProjectRefs),
	RecordTrailer: set(srcInstituteID, srcSenderID, srcExecutionDate, srcRecordCount, srcTotalAmount, srcChecksum),
}

// Sources every layout must carry so a receiver can reconcile the file.
var required = map[string][]string{
	RecordDetail:  {srcAmount, srcBankCode, srcBranchCode, srcAccountNumber},
	RecordTrailer: {srcRecordCount, srcTotalAmount, srcChecksum},
}

// Validate checks the layout for structural errors.
func (l Layout) Validate() error {
	var errs []error
	if _, err := lookupCharset(l.Charset); err != nil {
		errs = append(errs, err)
	}
	if _, err := l.lineEnding(); err != nil {
		errs = append(errs, err)
	}
	if l.ChecksumModulus <= 0 {
		errs = append(errs, fmt.Errorf("checksum_modulus must be positive, got %d", l.ChecksumModulus))
	}
	for _, rt := range []string{RecordHeader, RecordDetail, RecordTrailer} {
		errs = append(errs, validateRecord(rt, l.record(rt))...)
	}
	return errors.Join(errs...)
}

func validateRecord(rt string, r Record) []error {
	var errs []error
	if len(r.Fields) == 0 {
		return []error{fmt.Errorf("%s: no fields", rt)}
	}
	names := make(map[string]bool)
	for i, f := range r.Fields {
		where := fmt.Sprintf("%s field %d (%s)", rt, i+1, f.Name)
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("%s: missing name", where))
		}
		if f.Length <= 0 {
			errs = append(errs, fmt.Errorf("%s: length must be positive", where))
		}
		switch f.Kind {
		case KindNumeric, KindText, KindDate:
		default:
			errs = append(errs, fmt.Errorf("%s: unknown kind %q", where, f.Kind))
		}
		if len(f.Pad) > 1 {
			errs = append(errs, fmt.Errorf("%s: pad must be a single character", where))
		}
		if f.Align != "" && f.Align != AlignLeft && f.Align != AlignRight {
			errs = append(errs, fmt.Errorf("%s: unknown align %q", where, f.Align))
		}
		if f.Kind == KindNumeric {
			switch p := f.pad(); {
			case p != '0' && p != ' ':
				errs = append(errs, fmt.Errorf("%s: numeric pad must be '0' or ' ', got %q", where, p))
			case p == '0' && !f.rightAligned():
				errs = append(errs, fmt.Errorf("%s: left-aligned numeric field must be padded with spaces", where))
			}
		}
		if f.literal() {
			if f.Kind == KindNumeric && f.Value != "" && !id.IsDigits(f.Value) {
				errs = append(errs, fmt.Errorf("%s: numeric literal %q", where, f.Value))
			}
			if len(f.Value) > f.Length {
				errs = append(errs, fmt.Errorf("%s: literal %q wider than %d", where, f.Value, f.Length))
			}
			continue
		}
		if !sources[rt][f.Name] {
			errs = append(errs, fmt.Errorf("%s: unknown data source", where))
		}
		if (f.Name == srcExecutionDate) != (f.Kind == KindDate) {
			errs = append(errs, fmt.Errorf("%s: only execution_date may be, and must be, of kind date", where))
		}
		names[f.Name] = true
	}
	for _, name := range required[rt] {
		if !names[name] {
			errs = append(errs, fmt.Errorf("%s: missing required field %s", rt, name))
		}
	}
	return errs
}

func (l Layout) record(rt string) Record {
	switch rt {
	case RecordHeader:
		return l.Header
	case RecordDetail:
		return l.Detail
	default:
		return l.Trailer
	}
}

func (l Layout) lineEnding() (string, error) {
	switch l.LineEnding {
	case "crlf", "":
		return "\r\n", nil
	case "lf":
		return "\n", nil
	default:
		return "", fmt.Errorf("unknown line_ending %q", l.LineEnding)
	}
}

func (f Field) literal() bool {
	return f.Value != "" || f.Name == FillerName
}

func (f Field) pad() byte {
	if f.Pad != "" {
		return f.Pad[0]
	}
	if f.Kind == KindText {
		return ' '
	}
	return '0'
}

func (f Field) rightAligned() bool {
	if f.Align != "" {
		return f.Align == AlignRight
	}
	return f.Kind != KindText
}

func (f Field) dateFormat() string {
	if f.Format != "" {
		return f.Format
	}
	return defaultDateFormat
}

// ParseLayout decodes and validates a YAML layout.
func ParseLayout(data []byte) (Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("parsing layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return Layout{}, fmt.Errorf("invalid layout %q: %w", l.Name, err)
	}
	return l, nil
}

// LoadLayout reads a YAML layout file.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("reading layout: %w", err)
	}
	return ParseLayout(data)
}

// SaveLayout writes a layout as YAML.
func SaveLayout(path string, l Layout) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshaling layout: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing layout: %w", err)
	}
	return nil
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
