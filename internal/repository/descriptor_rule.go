package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/psych-report/backend/internal/models"
)

type GormDescriptorRuleRepository struct {
	db *gorm.DB
}

func NewGormDescriptorRuleRepository(db *gorm.DB) *GormDescriptorRuleRepository {
	return &GormDescriptorRuleRepository{db: db}
}

func (r *GormDescriptorRuleRepository) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.ScoreDescriptorRule, error) {
	var rules []models.ScoreDescriptorRule
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC, id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("list descriptor rules: %w", err)
	}
	return rules, nil
}

func (r *GormDescriptorRuleRepository) Create(ctx context.Context, rule *models.ScoreDescriptorRule) error {
	if rule.MaxScore != nil && *rule.MaxScore < rule.MinScore {
		return fmt.Errorf("create descriptor rule: max_score %v is below min_score %v", *rule.MaxScore, rule.MinScore)
	}
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("create descriptor rule: %w", err)
	}
	return nil
}

func (r *GormDescriptorRuleRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&models.ScoreDescriptorRule{})
	if res.Error != nil {
		return fmt.Errorf("delete descriptor rule: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
