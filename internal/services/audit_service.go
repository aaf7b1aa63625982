package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/psych-report/backend/internal/models"
	"github.com/psych-report/backend/internal/repository"
)

// Audit actions recorded against the test bank.
const (
	AuditActionLearnCreate = "learn_create"
	AuditActionLearnMerge  = "learn_merge"
	AuditActionCreate      = "create"
	AuditActionDelete      = "delete"
)

type AuditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

func (s *AuditService) Log(ctx context.Context, ownerID uuid.UUID, action, resourceType string, resourceID uuid.UUID, before, after models.JSONB) error {
	log := &models.AuditLog{
		OwnerID:      ownerID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Before:       before,
		After:        after,
	}
	return s.repo.Create(ctx, log)
}

// Recent returns the owner's latest audit entries, newest first.
func (s *AuditService) Recent(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListRecent(ctx, ownerID, limit)
}
