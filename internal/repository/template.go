package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/psych-report/backend/internal/models"
)

type GormTemplateRepository struct {
	db *gorm.DB
}

func NewGormTemplateRepository(db *gorm.DB) *GormTemplateRepository {
	return &GormTemplateRepository{db: db}
}

func (r *GormTemplateRepository) ListPersonal(ctx context.Context, ownerID uuid.UUID) ([]models.ReportTemplate, error) {
	var templates []models.ReportTemplate
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_system_template = ?", ownerID, false).
		Order("created_at ASC, id ASC").
		Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("list personal templates: %w", err)
	}
	return templates, nil
}

func (r *GormTemplateRepository) ListSystem(ctx context.Context) ([]models.ReportTemplate, error) {
	var templates []models.ReportTemplate
	err := r.db.WithContext(ctx).
		Where("is_system_template = ?", true).
		Order("created_at ASC, id ASC").
		Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("list system templates: %w", err)
	}
	return templates, nil
}

func (r *GormTemplateRepository) Create(ctx context.Context, tmpl *models.ReportTemplate) error {
	if err := r.db.WithContext(ctx).Create(tmpl).Error; err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// Delete removes one of the owner's templates. System templates cannot be
// deleted through it.
func (r *GormTemplateRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ? AND is_system_template = ?", id, ownerID, false).
		Delete(&models.ReportTemplate{})
	if res.Error != nil {
		return fmt.Errorf("delete template: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
