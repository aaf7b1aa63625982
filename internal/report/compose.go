package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/psych-report/backend/internal/descriptor"
	"github.com/psych-report/backend/internal/models"
	"github.com/psych-report/backend/internal/testbank"
)

// ComposeInput carries one client's scores and the owner's catalogue.
type ComposeInput struct {
	Client                  Client
	TestDate                time.Time
	DateLayout              string
	Scores                  []models.ExtractedScore
	Definitions             []models.TestDefinition
	Rules                   []models.ScoreDescriptorRule
	PersonalTemplates       []models.ReportTemplate
	SystemTemplates         []models.ReportTemplate
	AllowFallbackDescriptor bool
}

// Section is the rendered narrative for one test.
type Section struct {
	TestName     string               `json:"test_name"`
	ResolvedName string               `json:"resolved_name"`
	DefinitionID *uuid.UUID           `json:"definition_id,omitempty"`
	MatchMethod  testbank.MatchMethod `json:"match_method"`
	TemplateID   *uuid.UUID           `json:"template_id,omitempty"`
	Content      string               `json:"content"`
	Scores       []ScoredSubtest      `json:"scores"`
}

// Composition is the result of rendering a whole batch.
type Composition struct {
	Sections []Section `json:"sections"`
	Warnings []string  `json:"warnings"`
}

// Compose renders one section per distinct test name, in first-seen order.
// Tests without a template still get a section with empty content and add a
// warning; the same warning is reported once.
func Compose(in ComposeInput) Composition {
	out := Composition{Sections: []Section{}, Warnings: []string{}}
	seen := make(map[string]bool)

	order, groups := testbank.GroupByTest(in.Scores)
	for _, name := range order {
		resolved := testbank.Resolve(name, in.Definitions)
		annotated := testbank.AnnotateScores(resolved.Definition, groups[name])

		scored := make([]ScoredSubtest, len(annotated))
		for i, s := range annotated {
			scored[i] = ScoredSubtest{
				ExtractedScore: s,
				Resolved:       descriptor.Resolve(s, in.Rules, in.AllowFallbackDescriptor),
			}
		}

		section := Section{
			TestName:     name,
			ResolvedName: resolved.DisplayName,
			MatchMethod:  resolved.Method,
			Scores:       scored,
		}
		if resolved.Definition != nil {
			id := resolved.Definition.ID
			section.DefinitionID = &id
		}

		tmpl := MatchTemplate(resolved.DisplayName, in.PersonalTemplates, in.SystemTemplates)
		if tmpl == nil && resolved.DisplayName != name {
			tmpl = MatchTemplate(name, in.PersonalTemplates, in.SystemTemplates)
		}
		if tmpl == nil {
			warning := fmt.Sprintf("No template found for test: %s", name)
			if !seen[warning] {
				seen[warning] = true
				out.Warnings = append(out.Warnings, warning)
			}
			out.Sections = append(out.Sections, section)
			continue
		}

		id := tmpl.ID
		section.TemplateID = &id
		section.Content = Render(tmpl.TemplateContent, BuildPlaceholders(PlaceholderInput{
			Client:     in.Client,
			TestName:   resolved.DisplayName,
			TestDate:   in.TestDate,
			DateLayout: in.DateLayout,
			Scores:     scored,
		}))
		out.Sections = append(out.Sections, section)
	}
	return out
}
