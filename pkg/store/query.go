package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Aggregate is the result of a range-aggregate query. When Count is zero,
// Min, Max, and Mean are nil so callers can distinguish "no matching rows"
// from "matching rows all zero".
type Aggregate struct {
	Count int64
	Min   *float64
	Max   *float64
	Mean  *float64
}

// QueryAggregate scans the rows for userID, optionally bounded by inclusive
// canonical timestamps, and returns count, min, max, and mean of amount.
// Both bounds given means [start, end]; start only means [start, +inf);
// end only means (-inf, end]; neither means all rows for the user. Bound
// comparison is lexicographic, which is safe because stored timestamps all
// use the canonical layout. A start after end simply yields an empty range.
func (s *Store) QueryAggregate(ctx context.Context, userID int64, start, end *string) (Aggregate, error) {
	where := "user_id = ?"
	args := []interface{}{userID}

	switch {
	case start != nil && end != nil:
		where += " AND timestamp BETWEEN ? AND ?"
		args = append(args, *start, *end)
	case start != nil:
		where += " AND timestamp >= ?"
		args = append(args, *start)
	case end != nil:
		where += " AND timestamp <= ?"
		args = append(args, *end)
	}

	query := "SELECT COUNT(*), MIN(amount), MAX(amount), AVG(amount) FROM transactions WHERE " + where

	var count int64
	var min, max, mean sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count, &min, &max, &mean); err != nil {
		return Aggregate{}, fmt.Errorf("query aggregate: %w", err)
	}

	agg := Aggregate{Count: count}
	if min.Valid {
		v := min.Float64
		agg.Min = &v
	}
	if max.Valid {
		v := max.Float64
		agg.Max = &v
	}
	if mean.Valid {
		v := mean.Float64
		agg.Mean = &v
	}
	return agg, nil
}
