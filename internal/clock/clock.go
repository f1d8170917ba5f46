// Package clock abstracts wall time so that staleness checks can be driven
// deterministically in tests.
package clock

import "time"

// Clock supplies the current time.
//
// Thread-safety: implementations must be safe for concurrent use.
type Clock interface {
	Now() time.Time
}

// System reads the real wall clock in UTC.
type System struct{}

// Now returns time.Now in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}
