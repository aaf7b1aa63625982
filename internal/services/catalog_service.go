package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/psych-report/backend/internal/models"
	"github.com/psych-report/backend/internal/repository"
	"github.com/psych-report/backend/internal/testbank"
)

// ErrInvalidInput marks validation failures the caller can fix.
var ErrInvalidInput = errors.New("invalid input")

// SubtestInput is a curated subtest supplied by a user.
type SubtestInput struct {
	CanonicalName string   `json:"canonical_name"`
	DisplayName   string   `json:"display_name" binding:"required"`
	Aliases       []string `json:"aliases"`
	ScoreType     string   `json:"score_type"`
}

type DefinitionInput struct {
	TestName    string         `json:"test_name" binding:"required"`
	TestAliases []string       `json:"test_aliases"`
	Subtests    []SubtestInput `json:"subtests"`
}

// TemplateSet groups the templates an owner can render with.
type TemplateSet struct {
	Personal []models.ReportTemplate `json:"personal"`
	System   []models.ReportTemplate `json:"system"`
}

// CatalogService manages user-curated test definitions, templates and
// descriptor rules.
type CatalogService struct {
	definitions repository.TestDefinitionRepository
	templates   repository.TemplateRepository
	rules       repository.DescriptorRuleRepository
	audit       *AuditService
	logger      *zap.Logger
}

func NewCatalogService(definitions repository.TestDefinitionRepository, templates repository.TemplateRepository, rules repository.DescriptorRuleRepository, audit *AuditService, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		definitions: definitions,
		templates:   templates,
		rules:       rules,
		audit:       audit,
		logger:      logger,
	}
}

func (s *CatalogService) ListDefinitions(ctx context.Context, ownerID uuid.UUID) ([]models.TestDefinition, error) {
	return s.definitions.ListForOwner(ctx, ownerID)
}

// GetDefinition returns a definition owned by ownerID or a system one.
func (s *CatalogService) GetDefinition(ctx context.Context, ownerID, id uuid.UUID) (*models.TestDefinition, error) {
	def, err := s.definitions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !def.IsSystemTemplate && !def.OwnedBy(ownerID) {
		return nil, repository.ErrNotFound
	}
	return def, nil
}

// CreateDefinition stores a curated definition. Aliases that already
// resolve to another of the owner's definitions are returned as warnings;
// they do not block creation.
func (s *CatalogService) CreateDefinition(ctx context.Context, ownerID uuid.UUID, in DefinitionInput) (*models.TestDefinition, []string, error) {
	def, err := buildDefinition(in)
	if err != nil {
		return nil, nil, err
	}
	def.OwnerID = &ownerID

	owned, err := s.definitions.ListOwned(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	warnings := testbank.AliasCollisions(*def, owned)
	if warnings == nil {
		warnings = []string{}
	}

	if err := s.definitions.Create(ctx, def); err != nil {
		return nil, nil, err
	}
	s.record(ctx, ownerID, AuditActionCreate, "test_definition", def.ID, models.JSONB{
		"test_name": def.TestName,
		"subtests":  len(def.Subtests),
	})
	if len(warnings) > 0 {
		s.logger.Info("test definition created with alias collisions",
			zap.String("definition_id", def.ID.String()),
			zap.Strings("collisions", warnings))
	}
	return def, warnings, nil
}

func buildDefinition(in DefinitionInput) (*models.TestDefinition, error) {
	name := strings.TrimSpace(in.TestName)
	if name == "" {
		return nil, fmt.Errorf("%w: test_name is required", ErrInvalidInput)
	}

	def := &models.TestDefinition{
		TestName:    name,
		TestAliases: dedupe(in.TestAliases),
		Subtests:    []models.Subtest{},
	}

	seen := make(map[string]bool)
	for _, st := range in.Subtests {
		display := strings.TrimSpace(st.DisplayName)
		canonical := strings.TrimSpace(st.CanonicalName)
		if canonical == "" {
			canonical = testbank.FallbackCanonical(display)
		}
		if canonical == "" {
			return nil, fmt.Errorf("%w: subtest %q has no usable canonical name", ErrInvalidInput, st.DisplayName)
		}
		if seen[canonical] {
			return nil, fmt.Errorf("%w: duplicate canonical name %q", ErrInvalidInput, canonical)
		}
		seen[canonical] = true

		scoreType := st.ScoreType
		if scoreType == "" {
			scoreType = models.ScoreTypeStandard
		}
		if scoreType != models.ScoreTypeStandard && scoreType != models.ScoreTypeScaled {
			return nil, fmt.Errorf("%w: subtest %q has unknown score_type %q", ErrInvalidInput, canonical, scoreType)
		}

		def.Subtests = append(def.Subtests, models.Subtest{
			CanonicalName: canonical,
			DisplayName:   display,
			Aliases:       dedupe(st.Aliases),
			ScoreType:     scoreType,
			IsUserDefined: true,
		})
	}
	return def, nil
}

func dedupe(values []string) []string {
	out := []string{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func (s *CatalogService) ListTemplates(ctx context.Context, ownerID uuid.UUID) (TemplateSet, error) {
	personal, err := s.templates.ListPersonal(ctx, ownerID)
	if err != nil {
		return TemplateSet{}, err
	}
	system, err := s.templates.ListSystem(ctx)
	if err != nil {
		return TemplateSet{}, err
	}
	return TemplateSet{Personal: personal, System: system}, nil
}

func (s *CatalogService) CreateTemplate(ctx context.Context, ownerID uuid.UUID, tmpl *models.ReportTemplate) error {
	if strings.TrimSpace(tmpl.TestType) == "" {
		return fmt.Errorf("%w: test_type is required", ErrInvalidInput)
	}
	tmpl.ID = uuid.Nil
	tmpl.OwnerID = &ownerID
	tmpl.IsSystemTemplate = false
	if err := s.templates.Create(ctx, tmpl); err != nil {
		return err
	}
	s.record(ctx, ownerID, AuditActionCreate, "report_template", tmpl.ID, models.JSONB{"test_type": tmpl.TestType})
	return nil
}

func (s *CatalogService) DeleteTemplate(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.templates.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.record(ctx, ownerID, AuditActionDelete, "report_template", id, nil)
	return nil
}

func (s *CatalogService) ListRules(ctx context.Context, ownerID uuid.UUID) ([]models.ScoreDescriptorRule, error) {
	return s.rules.ListForOwner(ctx, ownerID)
}

func (s *CatalogService) CreateRule(ctx context.Context, ownerID uuid.UUID, rule *models.ScoreDescriptorRule) error {
	if rule.MaxScore != nil && *rule.MaxScore < rule.MinScore {
		return fmt.Errorf("%w: max_score is below min_score", ErrInvalidInput)
	}
	rule.ID = uuid.Nil
	rule.OwnerID = ownerID
	if err := s.rules.Create(ctx, rule); err != nil {
		return err
	}
	s.record(ctx, ownerID, AuditActionCreate, "descriptor_rule", rule.ID, models.JSONB{
		"score_type": rule.ScoreType,
		"descriptor": rule.Descriptor,
	})
	return nil
}

func (s *CatalogService) DeleteRule(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.rules.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.record(ctx, ownerID, AuditActionDelete, "descriptor_rule", id, nil)
	return nil
}

func (s *CatalogService) record(ctx context.Context, ownerID uuid.UUID, action, resourceType string, id uuid.UUID, after models.JSONB) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, ownerID, action, resourceType, id, nil, after); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
