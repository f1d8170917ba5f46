package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned by single-row lookups that match nothing.
// Callers translate it into the domain's own not-found rejection.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned by conditional updates whose guard no longer holds
// (e.g. the row left the expected status in the meantime).
var ErrConflict = errors.New("conditional update matched no rows")

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

// expectOne turns a zero-row update into ErrConflict.
func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
