package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/psych-report/backend/internal/config"
	"github.com/psych-report/backend/internal/descriptor"
	"github.com/psych-report/backend/internal/metrics"
	"github.com/psych-report/backend/internal/models"
	"github.com/psych-report/backend/internal/report"
	"github.com/psych-report/backend/internal/repository"
	"github.com/psych-report/backend/internal/testbank"
)

// RenderInput is one render request after the transport layer parsed it.
type RenderInput struct {
	Client     report.Client
	TestDate   time.Time
	Extraction models.ExtractionResult
	// AllowFallbackDescriptor overrides ALLOW_FALLBACK_DESCRIPTOR when set.
	AllowFallbackDescriptor *bool
}

// ReportService renders reports against the owner's test bank, descriptor
// rules and templates.
type ReportService struct {
	definitions repository.TestDefinitionRepository
	templates   repository.TemplateRepository
	rules       repository.DescriptorRuleRepository
	cfg         config.ReportConfig
	logger      *zap.Logger
}

func NewReportService(definitions repository.TestDefinitionRepository, templates repository.TemplateRepository, rules repository.DescriptorRuleRepository, cfg config.ReportConfig, logger *zap.Logger) *ReportService {
	return &ReportService{
		definitions: definitions,
		templates:   templates,
		rules:       rules,
		cfg:         cfg,
		logger:      logger,
	}
}

func (s *ReportService) Render(ctx context.Context, ownerID uuid.UUID, in RenderInput) (report.Composition, error) {
	start := time.Now()
	defer func() { metrics.RenderDuration.Observe(time.Since(start).Seconds()) }()

	defs, err := s.definitions.ListForOwner(ctx, ownerID)
	if err != nil {
		return report.Composition{}, fmt.Errorf("load test definitions: %w", err)
	}
	rules, err := s.rules.ListForOwner(ctx, ownerID)
	if err != nil {
		return report.Composition{}, fmt.Errorf("load descriptor rules: %w", err)
	}
	personal, system, err := s.loadTemplates(ctx, ownerID)
	if err != nil {
		return report.Composition{}, err
	}

	allowFallback := s.cfg.AllowFallbackDescriptor
	if in.AllowFallbackDescriptor != nil {
		allowFallback = *in.AllowFallbackDescriptor
	}

	out := report.Compose(report.ComposeInput{
		Client:                  in.Client,
		TestDate:                in.TestDate,
		DateLayout:              s.cfg.DateLayout,
		Scores:                  in.Extraction.Flatten(),
		Definitions:             defs,
		Rules:                   rules,
		PersonalTemplates:       personal,
		SystemTemplates:         system,
		AllowFallbackDescriptor: allowFallback,
	})

	for _, section := range out.Sections {
		metrics.TestResolutions.WithLabelValues(string(section.MatchMethod)).Inc()
		if section.TemplateID != nil {
			metrics.ReportsRendered.Inc()
		} else {
			metrics.MissingTemplates.Inc()
		}
		for _, sc := range section.Scores {
			metrics.DescriptorSources.WithLabelValues(sc.Resolved.Source).Inc()
		}
	}

	s.logger.Debug("report rendered",
		zap.String("owner_id", ownerID.String()),
		zap.Int("sections", len(out.Sections)),
		zap.Int("warnings", len(out.Warnings)))
	return out, nil
}

// Preview renders arbitrary template content against a caller-supplied map.
// Keys may be given bare ("client_first_name") or braced.
func (s *ReportService) Preview(content string, values map[string]string) string {
	m := make(report.PlaceholderMap, len(values))
	for k, v := range values {
		if !strings.HasPrefix(k, "{{") {
			k = "{{" + k + "}}"
		}
		m[k] = v
	}
	return report.Render(content, m)
}

// MatchTemplate returns the template a test name would render with, or nil.
func (s *ReportService) MatchTemplate(ctx context.Context, ownerID uuid.UUID, testName string) (*models.ReportTemplate, error) {
	personal, system, err := s.loadTemplates(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return report.MatchTemplate(testName, personal, system), nil
}

// ResolveTest explains how a raw test name resolves for the owner.
func (s *ReportService) ResolveTest(ctx context.Context, ownerID uuid.UUID, name string) (testbank.ResolvedTest, error) {
	defs, err := s.definitions.ListForOwner(ctx, ownerID)
	if err != nil {
		return testbank.ResolvedTest{}, fmt.Errorf("load test definitions: %w", err)
	}
	return testbank.Resolve(name, defs), nil
}

// ExplainDescriptor runs the descriptor cascade for one score.
func (s *ReportService) ExplainDescriptor(ctx context.Context, ownerID uuid.UUID, score models.ExtractedScore, allowFallback *bool) (descriptor.Result, error) {
	rules, err := s.rules.ListForOwner(ctx, ownerID)
	if err != nil {
		return descriptor.Result{}, fmt.Errorf("load descriptor rules: %w", err)
	}
	allow := s.cfg.AllowFallbackDescriptor
	if allowFallback != nil {
		allow = *allowFallback
	}
	return descriptor.Resolve(score, rules, allow), nil
}

func (s *ReportService) loadTemplates(ctx context.Context, ownerID uuid.UUID) ([]models.ReportTemplate, []models.ReportTemplate, error) {
	personal, err := s.templates.ListPersonal(ctx, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("load personal templates: %w", err)
	}
	system, err := s.templates.ListSystem(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load system templates: %w", err)
	}
	return personal, system, nil
}
