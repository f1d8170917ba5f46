package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText trims surrounding whitespace and applies Unicode NFC so that
// visually identical addresses, reasons and names compare equal once stored.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
