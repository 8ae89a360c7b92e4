package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// CompareTitles orders strings case-insensitively, falling back to a byte
// comparison so that the order is total.
func CompareTitles(a, b string) int {
	// A Caser is stateful, so each comparison gets its own.
	fold := cases.Fold()
	if c := strings.Compare(fold.String(a), fold.String(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
