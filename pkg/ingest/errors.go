package ingest

import "fmt"

// RowParseError reports a malformed data row. Row is the 1-based index of
// the data row (the header is not counted); Column names the offending
// field. The whole ingestion run aborts on the first such error, since a
// partial load would be ambiguous relative to the replace-reset.
type RowParseError struct {
	Row    int64
	Column string
	Err    error
}

func (e *RowParseError) Error() string {
	return fmt.Sprintf("row %d, column %q: %v", e.Row, e.Column, e.Err)
}

func (e *RowParseError) Unwrap() error {
	return e.Err
}
