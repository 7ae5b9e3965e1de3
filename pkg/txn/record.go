// Package txn defines the transaction record ingested and stored by tx-summary-db.
package txn

import (
	"time"

	"github.com/araddon/dateparse"
)

// CanonicalLayout is the canonical ISO-8601 text representation for stored
// timestamps. It is fixed-width with no timezone suffix, so lexicographic
// order on canonical strings matches chronological order.
const CanonicalLayout = "2006-01-02T15:04:05"

// Record is one transaction. ID is the immutable primary key; ProductID is
// nil when the source row left the field blank.
type Record struct {
	ID        string
	UserID    int64
	ProductID *int64
	Timestamp string // canonical, see CanonicalLayout
	Amount    float64
}

// ParseTime parses a date/time string in any common human format.
func ParseTime(s string) (time.Time, error) {
	return dateparse.ParseAny(s)
}

// CanonicalTime renders t in the canonical layout.
func CanonicalTime(t time.Time) string {
	return t.Format(CanonicalLayout)
}

// Canonicalize parses s and re-encodes it in the canonical layout.
func Canonicalize(s string) (string, error) {
	t, err := ParseTime(s)
	if err != nil {
		return "", err
	}
	return CanonicalTime(t), nil
}
