package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/psych-report/backend/internal/models"
	"github.com/psych-report/backend/internal/testbank"
)

type GormTestDefinitionRepository struct {
	db *gorm.DB
}

func NewGormTestDefinitionRepository(db *gorm.DB) *GormTestDefinitionRepository {
	return &GormTestDefinitionRepository{db: db}
}

func (r *GormTestDefinitionRepository) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.TestDefinition, error) {
	var defs []models.TestDefinition
	err := r.db.WithContext(ctx).
		Where("owner_id = ? OR is_system_template = ?", ownerID, true).
		Order("created_at ASC, id ASC").
		Find(&defs).Error
	if err != nil {
		return nil, fmt.Errorf("list test definitions: %w", err)
	}
	return defs, nil
}

func (r *GormTestDefinitionRepository) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]models.TestDefinition, error) {
	defs, err := listOwned(r.db.WithContext(ctx), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list owned test definitions: %w", err)
	}
	return defs, nil
}

func listOwned(tx *gorm.DB, ownerID uuid.UUID) ([]models.TestDefinition, error) {
	var defs []models.TestDefinition
	err := tx.Where("owner_id = ? AND is_system_template = ?", ownerID, false).
		Order("created_at ASC, id ASC").
		Find(&defs).Error
	return defs, err
}

func (r *GormTestDefinitionRepository) Get(ctx context.Context, id uuid.UUID) (*models.TestDefinition, error) {
	var def models.TestDefinition
	if err := r.db.WithContext(ctx).First(&def, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &def, nil
}

func (r *GormTestDefinitionRepository) Create(ctx context.Context, def *models.TestDefinition) error {
	if err := r.db.WithContext(ctx).Create(def).Error; err != nil {
		return fmt.Errorf("create test definition: %w", err)
	}
	return nil
}

func (r *GormTestDefinitionRepository) Update(ctx context.Context, def *models.TestDefinition) error {
	res := r.db.WithContext(ctx).
		Model(&models.TestDefinition{}).
		Where("id = ? AND version = ?", def.ID, def.Version).
		Updates(map[string]interface{}{
			"test_name":    def.TestName,
			"test_aliases": def.TestAliases,
			"subtests":     def.Subtests,
			"version":      def.Version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("update test definition: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.TestDefinition{}).Where("id = ?", def.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("update test definition: %w", err)
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	def.Version++
	return nil
}

func (r *GormTestDefinitionRepository) CreateIfAbsent(ctx context.Context, def *models.TestDefinition) error {
	if def.OwnerID == nil {
		return fmt.Errorf("create test definition: owner is required")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned, err := listOwned(tx, *def.OwnerID)
		if err != nil {
			return fmt.Errorf("re-check test definitions: %w", err)
		}
		if res := testbank.ResolveStrict(def.TestName, owned); res.Definition != nil {
			return ErrVersionConflict
		}
		if err := tx.Create(def).Error; err != nil {
			return fmt.Errorf("create test definition: %w", err)
		}
		return nil
	})
}
