// Package summary translates user-facing summary requests into store
// aggregate scans.
package summary

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecomware/tx-summary-db/pkg/store"
	"github.com/ecomware/tx-summary-db/pkg/txn"
)

// ErrInvalidUserID is returned when the user identifier is not a positive
// integer.
var ErrInvalidUserID = errors.New("user id must be a positive integer")

// InvalidTimeRangeError reports a bound string that could not be parsed as a
// date/time. Field is "start" or "end".
type InvalidTimeRangeError struct {
	Field string
	Value string
	Err   error
}

func (e *InvalidTimeRangeError) Error() string {
	return fmt.Sprintf("invalid %s time %q: %v", e.Field, e.Value, e.Err)
}

func (e *InvalidTimeRangeError) Unwrap() error {
	return e.Err
}

// Result is a summary response: the resolved canonical bounds plus the
// aggregate statistics. Start and End are nil when the caller supplied no
// bound.
type Result struct {
	UserID int64
	Start  *string
	End    *string
	store.Aggregate
}

// Summarize parses the optional free-form bound strings (common human date
// formats are accepted, not only strict ISO-8601), canonicalizes them, and
// delegates to the store.
//
// No ordering is enforced between start and end: a start after end is
// passed through and the resulting range is simply empty. This is
// deliberate; the caller's bounds are never silently swapped.
func Summarize(ctx context.Context, st *store.Store, userID int64, start, end string) (Result, error) {
	if userID < 1 {
		return Result{}, ErrInvalidUserID
	}

	startISO, err := canonicalBound("start", start)
	if err != nil {
		return Result{}, err
	}
	endISO, err := canonicalBound("end", end)
	if err != nil {
		return Result{}, err
	}

	agg, err := st.QueryAggregate(ctx, userID, startISO, endISO)
	if err != nil {
		return Result{}, err
	}

	return Result{
		UserID:    userID,
		Start:     startISO,
		End:       endISO,
		Aggregate: agg,
	}, nil
}

func canonicalBound(field, value string) (*string, error) {
	if value == "" {
		return nil, nil
	}
	t, err := txn.ParseTime(value)
	if err != nil {
		return nil, &InvalidTimeRangeError{Field: field, Value: value, Err: err}
	}
	iso := txn.CanonicalTime(t)
	return &iso, nil
}
