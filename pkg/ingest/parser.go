package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ecomware/tx-summary-db/pkg/txn"
)

// DefaultChunkSize is the default number of rows per batch.
const DefaultChunkSize = 100_000

// BatchReader streams a tabular transaction export as a sequence of
// bounded-size batches of records. The underlying stream is consumed once,
// forward-only; at most one batch of rows is held in memory at a time.
type BatchReader struct {
	csvr      *csv.Reader
	cols      map[string]int
	chunkSize int
	row       int64 // 1-based index of the last data row read
	done      bool
}

// NewBatchReader reads and validates the header row of r and returns a
// reader positioned at the first data row. Fails with ErrEmptyInput when the
// stream has no header, or with a SchemaError when required columns are
// missing.
func NewBatchReader(r io.Reader, chunkSize int) (*BatchReader, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	csvr := newCSVReader(r)
	header, err := csvr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	return &BatchReader{
		csvr:      csvr,
		cols:      cols,
		chunkSize: chunkSize,
	}, nil
}

// Next returns the next batch of at most chunkSize records. It returns
// io.EOF after the final batch has been delivered, and aborts with a
// RowParseError on the first malformed row.
func (br *BatchReader) Next() ([]txn.Record, error) {
	if br.done {
		return nil, io.EOF
	}

	batch := make([]txn.Record, 0, br.chunkSize)
	for len(batch) < br.chunkSize {
		fields, err := br.csvr.Read()
		if errors.Is(err, io.EOF) {
			br.done = true
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", br.row+1, err)
		}
		br.row++

		rec, err := br.parseRow(fields)
		if err != nil {
			return nil, err
		}
		batch = append(batch, rec)
	}

	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

// Rows returns the number of data rows read so far.
func (br *BatchReader) Rows() int64 {
	return br.row
}

func (br *BatchReader) parseRow(fields []string) (txn.Record, error) {
	id, err := br.requiredField(fields, "transaction_id")
	if err != nil {
		return txn.Record{}, err
	}

	userStr, err := br.requiredField(fields, "user_id")
	if err != nil {
		return txn.Record{}, err
	}
	userID, err := strconv.ParseInt(userStr, 10, 64)
	if err != nil {
		return txn.Record{}, br.rowErr("user_id", fmt.Errorf("not an integer: %q", userStr))
	}
	if userID < 1 {
		return txn.Record{}, br.rowErr("user_id", fmt.Errorf("must be >= 1, got %d", userID))
	}

	// product_id is optional: blank maps to absent, never to zero.
	var productID *int64
	if raw := br.field(fields, "product_id"); raw != "" {
		pid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return txn.Record{}, br.rowErr("product_id", fmt.Errorf("not an integer: %q", raw))
		}
		productID = &pid
	}

	tsRaw, err := br.requiredField(fields, "timestamp")
	if err != nil {
		return txn.Record{}, err
	}
	ts, err := txn.Canonicalize(tsRaw)
	if err != nil {
		return txn.Record{}, br.rowErr("timestamp", fmt.Errorf("unparseable timestamp %q: %v", tsRaw, err))
	}

	amountStr, err := br.requiredField(fields, "transaction_amount")
	if err != nil {
		return txn.Record{}, err
	}
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return txn.Record{}, br.rowErr("transaction_amount", fmt.Errorf("not a number: %q", amountStr))
	}

	return txn.Record{
		ID:        id,
		UserID:    userID,
		ProductID: productID,
		Timestamp: ts,
		Amount:    amount,
	}, nil
}

// field returns the trimmed value of the named column, or "" when the row is
// too short to contain it.
func (br *BatchReader) field(fields []string, column string) string {
	idx := br.cols[column]
	if idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

func (br *BatchReader) requiredField(fields []string, column string) (string, error) {
	v := br.field(fields, column)
	if v == "" {
		return "", br.rowErr(column, errors.New("required field is missing"))
	}
	return v, nil
}

func (br *BatchReader) rowErr(column string, err error) error {
	return &RowParseError{Row: br.row, Column: column, Err: err}
}
