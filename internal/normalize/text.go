// Package normalize turns raw spreadsheet rows into typed book and pricing
// fields, and provides the case-insensitive text keys used for matching.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
)

// folder is stateless and safe for concurrent use.
var folder = cases.Fold()

// Key returns the comparison key for s: trimmed and Unicode case-folded.
// Two strings match case-insensitively when their keys are equal.
func Key(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return folder.String(s)
}

// SameText reports whether a and b are equal ignoring case and surrounding
// whitespace.
func SameText(a, b string) bool {
	return Key(a) == Key(b)
}

// Clean trims s and drops NUL bytes, which some spreadsheet exports embed.
func Clean(s string) string {
	if strings.IndexByte(s, 0) >= 0 {
		s = strings.Map(func(r rune) rune {
			if r == 0 {
				return -1
			}
			return r
		}, s)
	}
	return strings.TrimSpace(s)
}
