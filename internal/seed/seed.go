// Package seed loads the built-in catalogue of system test definitions and
// report templates.
package seed

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/psych-report/backend/internal/models"
	"github.com/psych-report/backend/internal/report"
	"github.com/psych-report/backend/internal/repository"
	"github.com/psych-report/backend/internal/testbank"
)

//go:embed catalog.yaml
var catalogYAML []byte

type Catalogue struct {
	Definitions []DefinitionEntry `yaml:"definitions"`
	Templates   []TemplateEntry   `yaml:"templates"`
}

type DefinitionEntry struct {
	TestName string         `yaml:"test_name"`
	Aliases  []string       `yaml:"aliases"`
	Subtests []SubtestEntry `yaml:"subtests"`
}

type SubtestEntry struct {
	CanonicalName string   `yaml:"canonical_name"`
	DisplayName   string   `yaml:"display_name"`
	Aliases       []string `yaml:"aliases"`
	ScoreType     string   `yaml:"score_type"`
}

type TemplateEntry struct {
	Name     string `yaml:"name"`
	TestType string `yaml:"test_type"`
	Content  string `yaml:"content"`
}

// Load parses the embedded catalogue.
func Load() (*Catalogue, error) {
	return Parse(catalogYAML)
}

func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse seed catalogue: %w", err)
	}
	for i, d := range c.Definitions {
		if d.TestName == "" {
			return nil, fmt.Errorf("seed catalogue: definition %d has no test_name", i)
		}
	}
	for i, t := range c.Templates {
		if t.TestType == "" || t.Content == "" {
			return nil, fmt.Errorf("seed catalogue: template %d needs test_type and content", i)
		}
	}
	return &c, nil
}

func (d DefinitionEntry) definition() models.TestDefinition {
	def := models.TestDefinition{
		TestName:         d.TestName,
		TestAliases:      append([]string{}, d.Aliases...),
		Subtests:         []models.Subtest{},
		IsSystemTemplate: true,
	}
	for _, st := range d.Subtests {
		scoreType := st.ScoreType
		if scoreType == "" {
			scoreType = models.ScoreTypeStandard
		}
		canonical := st.CanonicalName
		if canonical == "" {
			canonical = testbank.FallbackCanonical(st.DisplayName)
		}
		def.Subtests = append(def.Subtests, models.Subtest{
			CanonicalName: canonical,
			DisplayName:   st.DisplayName,
			Aliases:       append([]string{}, st.Aliases...),
			ScoreType:     scoreType,
			IsUserDefined: true,
		})
	}
	return def
}

// Result counts what a seeding run created.
type Result struct {
	DefinitionsCreated int
	DefinitionsSkipped int
	TemplatesCreated   int
	TemplatesSkipped   int
}

type Seeder struct {
	definitions repository.TestDefinitionRepository
	templates   repository.TemplateRepository
	logger      *zap.Logger
}

func NewSeeder(definitions repository.TestDefinitionRepository, templates repository.TemplateRepository, logger *zap.Logger) *Seeder {
	return &Seeder{definitions: definitions, templates: templates, logger: logger}
}

// Run creates every catalogue entry that is not already present. System
// definitions are matched by normalized name, system templates by cleaned
// test type, so running it again creates nothing.
func (s *Seeder) Run(ctx context.Context, c *Catalogue) (Result, error) {
	var res Result

	all, err := s.definitions.ListForOwner(ctx, uuid.Nil)
	if err != nil {
		return res, fmt.Errorf("list system definitions: %w", err)
	}
	var system []models.TestDefinition
	for _, d := range all {
		if d.IsSystemTemplate {
			system = append(system, d)
		}
	}

	for _, entry := range c.Definitions {
		if testbank.ResolveStrict(entry.TestName, system).Definition != nil {
			res.DefinitionsSkipped++
			continue
		}
		def := entry.definition()
		if err := s.definitions.Create(ctx, &def); err != nil {
			return res, fmt.Errorf("create system definition %s: %w", entry.TestName, err)
		}
		system = append(system, def)
		res.DefinitionsCreated++
	}

	existing, err := s.templates.ListSystem(ctx)
	if err != nil {
		return res, fmt.Errorf("list system templates: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[report.CleanTestType(t.TestType)] = true
	}

	for _, entry := range c.Templates {
		key := report.CleanTestType(entry.TestType)
		if seen[key] {
			res.TemplatesSkipped++
			continue
		}
		tmpl := models.ReportTemplate{
			Name:             entry.Name,
			TestType:         entry.TestType,
			TemplateContent:  entry.Content,
			IsSystemTemplate: true,
		}
		if err := s.templates.Create(ctx, &tmpl); err != nil {
			return res, fmt.Errorf("create system template %s: %w", entry.TestType, err)
		}
		seen[key] = true
		res.TemplatesCreated++
	}

	s.logger.Info("system catalogue seeded",
		zap.Int("definitions_created", res.DefinitionsCreated),
		zap.Int("definitions_skipped", res.DefinitionsSkipped),
		zap.Int("templates_created", res.TemplatesCreated),
		zap.Int("templates_skipped", res.TemplatesSkipped))
	return res, nil
}
