package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/psych-report/backend/internal/metrics"
	"github.com/psych-report/backend/internal/models"
	"github.com/psych-report/backend/internal/repository"
	"github.com/psych-report/backend/internal/testbank"
)

// LearningSummary reports what a learning run changed. Failures are listed
// but never returned as an error.
type LearningSummary struct {
	Created       []string `json:"created"`
	Updated       []string `json:"updated"`
	AddedSubtests int      `json:"added_subtests"`
	Failed        []string `json:"failed,omitempty"`
}

func (s *LearningSummary) merge(other LearningSummary) {
	s.Created = append(s.Created, other.Created...)
	s.Updated = append(s.Updated, other.Updated...)
	s.AddedSubtests += other.AddedSubtests
	s.Failed = append(s.Failed, other.Failed...)
}

type LearningService struct {
	definitions repository.TestDefinitionRepository
	audit       *AuditService
	logger      *zap.Logger
	maxRetries  int
}

func NewLearningService(definitions repository.TestDefinitionRepository, audit *AuditService, logger *zap.Logger, maxRetries int) *LearningService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &LearningService{
		definitions: definitions,
		audit:       audit,
		logger:      logger,
		maxRetries:  maxRetries,
	}
}

// Learn folds the scores of a saved assessment into the owner's test bank.
// Test groups are applied one after another, each against a freshly loaded
// copy of the owner's definitions, so later groups see earlier results.
func (s *LearningService) Learn(ctx context.Context, ownerID uuid.UUID, scores []models.ExtractedScore) LearningSummary {
	summary := LearningSummary{Created: []string{}, Updated: []string{}}
	order, groups := testbank.GroupByTest(scores)
	for _, name := range order {
		if err := s.learnGroup(ctx, ownerID, name, groups[name], &summary); err != nil {
			metrics.LearningOutcomes.WithLabelValues("failed").Inc()
			summary.Failed = append(summary.Failed, name)
			s.logger.Error("test bank learning failed",
				zap.String("owner_id", ownerID.String()),
				zap.String("test_name", name),
				zap.Error(err))
		}
	}
	return summary
}

func (s *LearningService) learnGroup(ctx context.Context, ownerID uuid.UUID, name string, scores []models.ExtractedScore, summary *LearningSummary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while learning %q: %v", name, r)
		}
	}()

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		owned, loadErr := s.definitions.ListOwned(ctx, ownerID)
		if loadErr != nil {
			return fmt.Errorf("load definitions: %w", loadErr)
		}

		out := testbank.Learn(name, scores, owned)
		if !out.Changed {
			metrics.LearningOutcomes.WithLabelValues("unchanged").Inc()
			return nil
		}

		err := s.persist(ctx, ownerID, out, owned)
		if errors.Is(err, repository.ErrVersionConflict) {
			metrics.LearningOutcomes.WithLabelValues("conflict").Inc()
			s.logger.Warn("test definition changed concurrently, retrying",
				zap.String("test_name", name),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return err
		}

		if out.Created {
			metrics.LearningOutcomes.WithLabelValues("created").Inc()
			summary.Created = append(summary.Created, out.Definition.TestName)
		} else {
			metrics.LearningOutcomes.WithLabelValues("merged").Inc()
			summary.Updated = append(summary.Updated, out.Definition.TestName)
		}
		summary.AddedSubtests += len(out.AddedSubtests)
		return nil
	}
	return fmt.Errorf("giving up after %d attempts: %w", s.maxRetries, repository.ErrVersionConflict)
}

func (s *LearningService) persist(ctx context.Context, ownerID uuid.UUID, out testbank.LearnOutcome, owned []models.TestDefinition) error {
	def := out.Definition
	after := models.JSONB{
		"test_name":      def.TestName,
		"added_subtests": out.AddedSubtests,
	}

	if out.Created {
		def.OwnerID = &ownerID
		def.IsSystemTemplate = false
		if err := s.definitions.CreateIfAbsent(ctx, &def); err != nil {
			return err
		}
		s.record(ctx, ownerID, AuditActionLearnCreate, def.ID, nil, after)
		return nil
	}

	before := owned[out.Index]
	if err := s.definitions.Update(ctx, &def); err != nil {
		return err
	}
	s.record(ctx, ownerID, AuditActionLearnMerge, def.ID, models.JSONB{
		"version":  before.Version,
		"subtests": len(before.Subtests),
	}, after)
	return nil
}

func (s *LearningService) record(ctx context.Context, ownerID uuid.UUID, action string, id uuid.UUID, before, after models.JSONB) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, ownerID, action, "test_definition", id, before, after); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
