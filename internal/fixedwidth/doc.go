// Package fixedwidth encodes payment batches into fixed-width clearing files
// and decodes them back for verification.
//
// A file is one header record, one detail record per payment line and one
// trailer record. The byte layout of each record is described by a Layout,
// loaded from YAML so that a clearing house's published offsets can be
// supplied without code changes. Encoding is a pure function of the Layout
// and the Batch: the same inputs always produce the same bytes.
//
// Monetary and identifier fields never lose digits: a value wider than its
// field is a field_overflow error. Descriptive text is truncated to fit and
// every truncation is reported back to the caller.
package fixedwidth
