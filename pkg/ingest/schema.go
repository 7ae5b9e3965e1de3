package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// RequiredColumns are the header names every ingestion stream must declare,
// in any order. Extra columns are ignored.
var RequiredColumns = []string{
	"transaction_id",
	"user_id",
	"product_id",
	"timestamp",
	"transaction_amount",
}

// ErrEmptyInput is returned when the stream contains no header row at all.
var ErrEmptyInput = errors.New("input contains no header row")

// SchemaError reports required columns missing from the header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ValidateSchema inspects only the header row of r and confirms every
// required column is present. It consumes the header from r; callers that
// want to ingest afterwards re-open the stream or use the ingestion path,
// which validates the header itself without rewinding.
func ValidateSchema(r io.Reader) error {
	csvr := newCSVReader(r)
	header, err := csvr.Read()
	if errors.Is(err, io.EOF) {
		return ErrEmptyInput
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	_, err = columnIndex(header)
	return err
}

// columnIndex maps required column names to their positions in the header.
// Returns a SchemaError naming every missing column.
func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			// UTF-8 BOM from spreadsheet exports
			name = strings.TrimPrefix(name, "\ufeff")
		}
		cols[name] = i
	}

	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	return cols, nil
}
