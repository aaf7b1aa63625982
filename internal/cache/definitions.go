package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/psych-report/backend/internal/models"
	"github.com/psych-report/backend/internal/repository"
)

const definitionsPrefix = "testbank:definitions:"

// DefinitionRepository caches ListForOwner in front of another
// TestDefinitionRepository. Writes invalidate the owner's entry, and writes
// to system definitions invalidate every owner. Store failures are logged
// and fall through to the wrapped repository.
type DefinitionRepository struct {
	repository.TestDefinitionRepository
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

func NewDefinitionRepository(inner repository.TestDefinitionRepository, store Store, ttl time.Duration, logger *zap.Logger) *DefinitionRepository {
	return &DefinitionRepository{
		TestDefinitionRepository: inner,
		store:                    store,
		ttl:                      ttl,
		logger:                   logger,
	}
}

func definitionsKey(ownerID uuid.UUID) string {
	return definitionsPrefix + ownerID.String()
}

func (r *DefinitionRepository) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.TestDefinition, error) {
	key := definitionsKey(ownerID)
	if raw, err := r.store.Get(ctx, key); err == nil {
		var defs []models.TestDefinition
		if err := json.Unmarshal(raw, &defs); err == nil {
			return defs, nil
		}
		r.logger.Warn("discarding corrupt definitions cache entry", zap.String("key", key))
	} else if !errors.Is(err, ErrMiss) {
		r.logger.Warn("definitions cache read failed", zap.String("key", key), zap.Error(err))
	}

	defs, err := r.TestDefinitionRepository.ListForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(defs); err == nil {
		if err := r.store.Set(ctx, key, raw, r.ttl); err != nil {
			r.logger.Warn("definitions cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return defs, nil
}

func (r *DefinitionRepository) Create(ctx context.Context, def *models.TestDefinition) error {
	if err := r.TestDefinitionRepository.Create(ctx, def); err != nil {
		return err
	}
	r.invalidate(ctx, def)
	return nil
}

func (r *DefinitionRepository) Update(ctx context.Context, def *models.TestDefinition) error {
	if err := r.TestDefinitionRepository.Update(ctx, def); err != nil {
		return err
	}
	r.invalidate(ctx, def)
	return nil
}

func (r *DefinitionRepository) CreateIfAbsent(ctx context.Context, def *models.TestDefinition) error {
	if err := r.TestDefinitionRepository.CreateIfAbsent(ctx, def); err != nil {
		return err
	}
	r.invalidate(ctx, def)
	return nil
}

func (r *DefinitionRepository) invalidate(ctx context.Context, def *models.TestDefinition) {
	var err error
	switch {
	case def.IsSystemTemplate || def.OwnerID == nil:
		err = r.store.DeletePrefix(ctx, definitionsPrefix)
	default:
		err = r.store.Delete(ctx, definitionsKey(*def.OwnerID))
	}
	if err != nil {
		r.logger.Warn("definitions cache invalidation failed", zap.String("definition_id", def.ID.String()), zap.Error(err))
	}
}
