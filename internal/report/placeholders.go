package report

import (
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/psych-report/backend/internal/descriptor"
	"github.com/psych-report/backend/internal/models"
)

// DefaultDateLayout is used for {{test_date}} when no layout is configured.
const DefaultDateLayout = "January 2, 2006"

// Standard placeholder keys.
const (
	KeyClientFirstName   = "{{client_first_name}}"
	KeyClientLastName    = "{{client_last_name}}"
	KeyPronounSubjective = "{{pronoun_subjective}}"
	KeyPronounObjective  = "{{pronoun_objective}}"
	KeyPronounPossessive = "{{pronoun_possessive}}"
	KeyTestName          = "{{test_name}}"
	KeyTestDate          = "{{test_date}}"
	KeyScoreTable        = "{{score_table}}"
)

// PlaceholderMap maps a full placeholder key, braces included, to its
// replacement text. It is built per render and never stored.
type PlaceholderMap map[string]string

// Pronouns is the set of pronoun forms substituted into a template.
type Pronouns struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Possessive string `json:"possessive"`
}

// Client describes the person a report is written about.
type Client struct {
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Gender    string    `json:"gender"`
	Pronouns  *Pronouns `json:"pronouns,omitempty"`
}

// PronounsFor derives pronouns from a free-text gender value.
func PronounsFor(gender string) Pronouns {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "male", "m":
		return Pronouns{Subjective: "he", Objective: "him", Possessive: "his"}
	case "female", "f":
		return Pronouns{Subjective: "she", Objective: "her", Possessive: "her"}
	default:
		return Pronouns{Subjective: "they", Objective: "them", Possessive: "their"}
	}
}

// pronouns returns the explicit pronouns when supplied, else the ones
// derived from gender.
func (c Client) pronouns() Pronouns {
	if c.Pronouns != nil && c.Pronouns.Subjective != "" {
		return *c.Pronouns
	}
	return PronounsFor(c.Gender)
}

// ScoredSubtest pairs an annotated score with its resolved descriptor.
type ScoredSubtest struct {
	models.ExtractedScore
	Resolved descriptor.Result `json:"resolved"`
}

// PlaceholderInput is everything needed to build the map for one test.
type PlaceholderInput struct {
	Client     Client
	TestName   string
	TestDate   time.Time
	DateLayout string
	Scores     []ScoredSubtest
}

// BuildPlaceholders builds the substitution table for one test section.
// Per-subtest keys are only emitted for scores mapped to a canonical name.
func BuildPlaceholders(in PlaceholderInput) PlaceholderMap {
	p := in.Client.pronouns()
	m := PlaceholderMap{
		KeyClientFirstName:   in.Client.FirstName,
		KeyClientLastName:    in.Client.LastName,
		KeyPronounSubjective: p.Subjective,
		KeyPronounObjective:  p.Objective,
		KeyPronounPossessive: p.Possessive,
		KeyTestName:          in.TestName,
		KeyTestDate:          formatDate(in.TestDate, in.DateLayout),
		KeyScoreTable:        ScoreTable(in.Scores),
	}

	for _, s := range in.Scores {
		if s.CanonicalName == "" {
			continue
		}
		m[subtestKey(s.CanonicalName, "score")] = formatOptional(primaryScore(s.ExtractedScore))
		m[subtestKey(s.CanonicalName, "percentile")] = formatOptional(s.PercentileRank)
		m[subtestKey(s.CanonicalName, "descriptor")] = s.Resolved.Descriptor
	}
	return m
}

func subtestKey(canonical, field string) string {
	return "{{" + canonical + "_" + field + "}}"
}

// primaryScore is the scaled score when present, else the composite score.
func primaryScore(s models.ExtractedScore) *float64 {
	if s.ScaledScore != nil {
		return s.ScaledScore
	}
	return s.CompositeScore
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatDate(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	if layout == "" {
		layout = DefaultDateLayout
	}
	return t.Format(layout)
}

// ScoreTable renders every score as an HTML table fragment. Mapped scores
// use their display name, unmapped ones the raw subtest name.
func ScoreTable(scores []ScoredSubtest) string {
	var b strings.Builder
	b.WriteString(`<table class="score-table"><thead><tr>`)
	b.WriteString("<th>Subtest</th><th>Score</th><th>Percentile</th><th>Descriptor</th>")
	b.WriteString("</tr></thead><tbody>")
	for _, s := range scores {
		name := s.SubtestName
		if s.DisplayName != "" {
			name = s.DisplayName
		}
		b.WriteString("<tr>")
		writeCell(&b, name)
		writeCell(&b, formatOptional(primaryScore(s.ExtractedScore)))
		writeCell(&b, formatOptional(s.PercentileRank))
		writeCell(&b, s.Resolved.Descriptor)
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func writeCell(b *strings.Builder, text string) {
	b.WriteString("<td>")
	b.WriteString(html.EscapeString(text))
	b.WriteString("</td>")
}
