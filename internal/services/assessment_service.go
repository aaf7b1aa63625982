package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/psych-report/backend/internal/models"
	"github.com/psych-report/backend/internal/repository"
)

type SaveAssessmentInput struct {
	ClientFirstName string
	ClientLastName  string
	ClientGender    string
	TestDate        time.Time
	Extraction      models.ExtractionResult
}

type SaveAssessmentResult struct {
	Assessment *models.Assessment `json:"assessment"`
	Learning   LearningSummary    `json:"learning"`
}

type AssessmentService struct {
	assessments repository.AssessmentRepository
	learning    *LearningService
	logger      *zap.Logger
}

func NewAssessmentService(assessments repository.AssessmentRepository, learning *LearningService, logger *zap.Logger) *AssessmentService {
	return &AssessmentService{assessments: assessments, learning: learning, logger: logger}
}

// Save stores the assessment and then feeds its scores to the learning
// engine. Only the save itself can fail the call.
func (s *AssessmentService) Save(ctx context.Context, ownerID uuid.UUID, in SaveAssessmentInput) (*SaveAssessmentResult, error) {
	scores := in.Extraction.Flatten()
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: assessment has no scores", ErrInvalidInput)
	}

	a := &models.Assessment{
		OwnerID:         ownerID,
		ClientFirstName: in.ClientFirstName,
		ClientLastName:  in.ClientLastName,
		ClientGender:    in.ClientGender,
		TestDate:        in.TestDate,
	}
	for _, sc := range scores {
		a.Scores = append(a.Scores, models.AssessmentScore{ExtractedScore: sc})
	}
	if err := s.assessments.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("save assessment: %w", err)
	}

	summary := s.learning.Learn(ctx, ownerID, scores)
	s.logger.Info("assessment saved",
		zap.String("assessment_id", a.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.Int("scores", len(scores)),
		zap.Int("definitions_created", len(summary.Created)),
		zap.Int("definitions_updated", len(summary.Updated)))

	return &SaveAssessmentResult{Assessment: a, Learning: summary}, nil
}

func (s *AssessmentService) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Assessment, error) {
	return s.assessments.Get(ctx, ownerID, id)
}

// Backfill re-runs learning over every stored assessment, or only those of
// ownerID when it is set. Learning is idempotent, so running it twice
// changes nothing the second time.
func (s *AssessmentService) Backfill(ctx context.Context, ownerID *uuid.UUID) (LearningSummary, error) {
	total := LearningSummary{Created: []string{}, Updated: []string{}}

	refs, err := s.assessments.ListIDs(ctx, ownerID)
	if err != nil {
		return total, fmt.Errorf("list assessments: %w", err)
	}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		scores, err := s.assessments.ListScores(ctx, ref.ID)
		if err != nil {
			return total, fmt.Errorf("load scores for assessment %s: %w", ref.ID, err)
		}
		total.merge(s.learning.Learn(ctx, ref.OwnerID, scores))
	}

	s.logger.Info("backfill complete",
		zap.Int("assessments", len(refs)),
		zap.Int("definitions_created", len(total.Created)),
		zap.Int("definitions_updated", len(total.Updated)),
		zap.Int("failed", len(total.Failed)))
	return total, nil
}
