package nessus

import "fmt"

// FormatError reports a source that does not hand out the raw report
// bytes: a nil reader, or UTF-16 text without a byte order mark, which is
// what a report decoded to wide text before reaching the stream looks like.
// Reports saved as UTF-16 or UTF-32 with a BOM are decoded normally.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("nessus: report source not readable as binary: %s", e.Reason)
}

// MalformedDocumentError wraps a failure of the underlying XML tokenizer.
type MalformedDocumentError struct {
	Err error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("nessus: malformed document: %v", e.Err)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// FieldParseError reports a typed field whose text failed conversion.
type FieldParseError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldParseError) Error() string {
	return fmt.Sprintf("nessus: field %q: cannot parse %q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldParseError) Unwrap() error { return e.Err }
