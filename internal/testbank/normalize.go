// Package testbank resolves free-text test and subtest names against the
// curated test bank and learns new subtests from observed scores.
package testbank

import (
	"regexp"
	"strings"
)

var (
	romanFive     = regexp.MustCompile(`\bv\b`)
	romanFour     = regexp.MustCompile(`\biv\b`)
	nonAlnum      = regexp.MustCompile(`[^a-z0-9]+`)
	nonAlnumSpace = regexp.MustCompile(`[^a-z0-9 ]+`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// Normalize builds the comparison key for test names. Standalone "v" and
// "iv" are folded into "5" and "4" so "WAIS-V", "WAIS 5" and "wais5" compare
// equal.
func Normalize(name string) string {
	s := strings.ToLower(name)
	s = romanFour.ReplaceAllString(s, "4")
	s = romanFive.ReplaceAllString(s, "5")
	return nonAlnum.ReplaceAllString(s, "")
}

// NormalizeSimple lowercases and strips everything that is not [a-z0-9].
// Used for subtest names; it does not fold numerals.
func NormalizeSimple(name string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(name), "")
}

// FallbackCanonical derives a snake-form canonical name for a subtest that
// the test bank does not know yet: "Block Design" -> "block_design".
func FallbackCanonical(name string) string {
	s := nonAlnumSpace.ReplaceAllString(strings.ToLower(name), "")
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), "_")
	return strings.Trim(s, "_")
}
