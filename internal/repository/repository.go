// Package repository persists test bank records with gorm.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/psych-report/backend/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist or is not visible
	// to the caller.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a definition changed since it was
	// read, or when a definition with the same name was created concurrently.
	ErrVersionConflict = errors.New("version conflict")
)

type TestDefinitionRepository interface {
	// ListForOwner returns the owner's definitions plus every system
	// definition, ordered by created_at then id.
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.TestDefinition, error)
	// ListOwned returns only the owner's own definitions.
	ListOwned(ctx context.Context, ownerID uuid.UUID) ([]models.TestDefinition, error)
	Get(ctx context.Context, id uuid.UUID) (*models.TestDefinition, error)
	Create(ctx context.Context, def *models.TestDefinition) error
	// Update writes def if its Version still matches the stored row and
	// bumps Version on success.
	Update(ctx context.Context, def *models.TestDefinition) error
	// CreateIfAbsent creates def unless the owner already has a definition
	// resolving to the same name, in which case ErrVersionConflict is
	// returned.
	CreateIfAbsent(ctx context.Context, def *models.TestDefinition) error
}

type TemplateRepository interface {
	ListPersonal(ctx context.Context, ownerID uuid.UUID) ([]models.ReportTemplate, error)
	ListSystem(ctx context.Context) ([]models.ReportTemplate, error)
	Create(ctx context.Context, tmpl *models.ReportTemplate) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

type DescriptorRuleRepository interface {
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.ScoreDescriptorRule, error)
	Create(ctx context.Context, rule *models.ScoreDescriptorRule) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

// AssessmentRef identifies a stored assessment and its owner.
type AssessmentRef struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
}

type AssessmentRepository interface {
	// Create stores the assessment and its scores in one transaction.
	Create(ctx context.Context, a *models.Assessment) error
	Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Assessment, error)
	ListScores(ctx context.Context, assessmentID uuid.UUID) ([]models.ExtractedScore, error)
	// ListIDs returns every assessment, or only ownerID's when it is non-nil,
	// oldest first.
	ListIDs(ctx context.Context, ownerID *uuid.UUID) ([]AssessmentRef, error)
}

type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListRecent(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.AuditLog, error)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
