// Package report matches narrative templates to tests and renders them
// with placeholder substitution.
package report

import (
	"regexp"
	"strings"

	"github.com/psych-report/backend/internal/models"
)

var templateNoise = regexp.MustCompile(`[^a-z0-9]+`)

// CleanTestType lowercases, turns punctuation into spaces, collapses
// whitespace and folds the standalone numerals "iv" and "v" into digits so
// "WISC-IV" and "WISC 4" clean to the same tokens.
func CleanTestType(s string) string {
	s = templateNoise.ReplaceAllString(strings.ToLower(s), " ")
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		switch tok {
		case "iv":
			tokens[i] = "4"
		case "v":
			tokens[i] = "5"
		}
	}
	return strings.Join(tokens, " ")
}

// TemplateMatches reports whether every token of the template's test type is
// a substring of the cleaned test name. Token order and word boundaries are
// ignored.
func TemplateMatches(testType, testName string) bool {
	tokens := strings.Fields(CleanTestType(testType))
	if len(tokens) == 0 {
		return false
	}
	name := CleanTestType(testName)
	for _, tok := range tokens {
		if !strings.Contains(name, tok) {
			return false
		}
	}
	return true
}

// MatchTemplate returns the first personal template matching testName, or
// failing that the first matching system template. It is first-match, not
// best-match.
func MatchTemplate(testName string, personal, system []models.ReportTemplate) *models.ReportTemplate {
	for i := range personal {
		if TemplateMatches(personal[i].TestType, testName) {
			return &personal[i]
		}
	}
	for i := range system {
		if TemplateMatches(system[i].TestType, testName) {
			return &system[i]
		}
	}
	return nil
}
