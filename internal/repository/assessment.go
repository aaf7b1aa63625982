package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/psych-report/backend/internal/models"
)

type GormAssessmentRepository struct {
	db *gorm.DB
}

func NewGormAssessmentRepository(db *gorm.DB) *GormAssessmentRepository {
	return &GormAssessmentRepository{db: db}
}

func (r *GormAssessmentRepository) Create(ctx context.Context, a *models.Assessment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scores := a.Scores
		a.Scores = nil
		if err := tx.Create(a).Error; err != nil {
			return fmt.Errorf("create assessment: %w", err)
		}
		for i := range scores {
			scores[i].AssessmentID = a.ID
			scores[i].Position = i
		}
		if len(scores) > 0 {
			if err := tx.Create(&scores).Error; err != nil {
				return fmt.Errorf("create assessment scores: %w", err)
			}
		}
		a.Scores = scores
		return nil
	})
}

func (r *GormAssessmentRepository) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Assessment, error) {
	var a models.Assessment
	err := r.db.WithContext(ctx).
		Preload("Scores", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&a).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *GormAssessmentRepository) ListScores(ctx context.Context, assessmentID uuid.UUID) ([]models.ExtractedScore, error) {
	var rows []models.AssessmentScore
	err := r.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list assessment scores: %w", err)
	}
	scores := make([]models.ExtractedScore, len(rows))
	for i, row := range rows {
		scores[i] = row.ExtractedScore
	}
	return scores, nil
}

func (r *GormAssessmentRepository) ListIDs(ctx context.Context, ownerID *uuid.UUID) ([]AssessmentRef, error) {
	q := r.db.WithContext(ctx).Model(&models.Assessment{})
	if ownerID != nil {
		q = q.Where("owner_id = ?", *ownerID)
	}
	var refs []AssessmentRef
	if err := q.Select("id, owner_id").Order("created_at ASC, id ASC").Scan(&refs).Error; err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return refs, nil
}
