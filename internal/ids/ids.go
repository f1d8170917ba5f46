// Package ids generates identifiers for carts, orders and returns.
package ids

import "github.com/google/uuid"

// Generator produces unique identifiers.
type Generator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// creation time, which keeps "newest first" listings cheap to reason about.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Prefixed decorates another generator with a readable prefix, e.g.
// "ord_0190…". Useful when ids of several entities end up in one log line.
type Prefixed struct {
	Prefix string
	Next   Generator
}

// Generate returns Prefix + "_" + the wrapped id.
func (p Prefixed) Generate() string {
	return p.Prefix + "_" + p.Next.Generate()
}
