package fixedwidth

// DefaultLayout is the built-in 128-byte layout used when no layout file is
// configured. Replace it with the clearing house's published layout for
// production submissions.
func DefaultLayout() Layout {
	return Layout{
		Name:            "generic-128",
		Charset:         "iso-8859-8",
		LineEnding:      "crlf",
		ChecksumModulus: 1_000_000_007,
		Header: Record{Fields: []Field{
			{Name: "record_type", Length: 1, Kind: KindText, Value: "K"},
			{Name: srcInstituteID, Length: 8, Kind: KindNumeric},
			{Name: srcSenderID, Length: 3, Kind: KindNumeric},
			{Name: srcExecutionDate, Length: 8, Kind: KindDate, Format: "20060102"},
			{Name: srcRecordCount, Length: 6, Kind: KindNumeric},
			{Name: srcCompanyName, Length: 30, Kind: KindText},
			{Name: FillerName, Length: 72, Kind: KindText},
		}},
		Detail: Record{Fields: []Field{
			{Name: "record_type", Length: 1, Kind: KindText, Value: "1"},
			{Name: srcInstituteID, Length: 8, Kind: KindNumeric},
			{Name: srcSequence, Length: 6, Kind: KindNumeric},
			{Name: srcBankCode, Length: 2, Kind: KindNumeric},
			{Name: srcBranchCode, Length: 3, Kind: KindNumeric},
			{Name: srcAccountNumber, Length: 9, Kind: KindNumeric},
			{Name: srcAmount, Length: 13, Kind: KindNumeric},
			{Name: srcPayee, Length: 16, Kind: KindText},
			{Name: srcInvoiceRefs, Length: 40, Kind: KindText},
			{Name: srcProjectRefs, Length: 20, Kind: KindText},
			{Name: FillerName, Length: 10, Kind: KindText},
		}},
		Trailer: Record{Fields: []Field{
			{Name: "record_type", Length: 1, Kind: KindText, Value: "5"},
			{Name: srcInstituteID, Length: 8, Kind: KindNumeric},
			{Name: srcExecutionDate, Length: 8, Kind: KindDate, Format: "20060102"},
			{Name: srcRecordCount, Length: 6, Kind: KindNumeric},
			{Name: srcTotalAmount, Length: 15, Kind: KindNumeric},
			{Name: srcChecksum, Length: 10, Kind: KindNumeric},
			{Name: FillerName, Length: 80, Kind: KindText},
		}},
	}
}
