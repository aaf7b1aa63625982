package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/psych-report/backend/internal/models"
	"github.com/psych-report/backend/internal/repository"
	"github.com/psych-report/backend/internal/testbank"
)

type fakeDefinitions struct {
	mu   sync.Mutex
	defs []models.TestDefinition
	// conflicts makes the next N updates fail with ErrVersionConflict.
	conflicts   int
	updateCalls int
	panicOnList bool
}

func (f *fakeDefinitions) ListForOwner(_ context.Context, ownerID uuid.UUID) ([]models.TestDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TestDefinition
	for _, d := range f.defs {
		if d.IsSystemTemplate || d.OwnedBy(ownerID) {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

func (f *fakeDefinitions) ListOwned(_ context.Context, ownerID uuid.UUID) ([]models.TestDefinition, error) {
	if f.panicOnList {
		panic("storage exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TestDefinition
	for _, d := range f.defs {
		if d.OwnedBy(ownerID) {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

func (f *fakeDefinitions) Get(_ context.Context, id uuid.UUID) (*models.TestDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.defs {
		if d.ID == id {
			c := d.Clone()
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeDefinitions) Create(_ context.Context, def *models.TestDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.create(def)
	return nil
}

func (f *fakeDefinitions) create(def *models.TestDefinition) {
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	if def.Version == 0 {
		def.Version = 1
	}
	f.defs = append(f.defs, def.Clone())
}

func (f *fakeDefinitions) Update(_ context.Context, def *models.TestDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.conflicts > 0 {
		f.conflicts--
		return repository.ErrVersionConflict
	}
	for i, d := range f.defs {
		if d.ID != def.ID {
			continue
		}
		if d.Version != def.Version {
			return repository.ErrVersionConflict
		}
		def.Version++
		f.defs[i] = def.Clone()
		return nil
	}
	return repository.ErrNotFound
}

func (f *fakeDefinitions) CreateIfAbsent(_ context.Context, def *models.TestDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var owned []models.TestDefinition
	for _, d := range f.defs {
		if def.OwnerID != nil && d.OwnedBy(*def.OwnerID) {
			owned = append(owned, d)
		}
	}
	if testbank.ResolveStrict(def.TestName, owned).Definition != nil {
		return repository.ErrVersionConflict
	}
	f.create(def)
	return nil
}

func (f *fakeDefinitions) owned(ownerID uuid.UUID) []models.TestDefinition {
	out, _ := f.ListOwned(context.Background(), ownerID)
	return out
}

type fakeTemplates struct {
	items []models.ReportTemplate
}

func (f *fakeTemplates) ListPersonal(_ context.Context, ownerID uuid.UUID) ([]models.ReportTemplate, error) {
	var out []models.ReportTemplate
	for _, t := range f.items {
		if !t.IsSystemTemplate && t.OwnerID != nil && *t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTemplates) ListSystem(context.Context) ([]models.ReportTemplate, error) {
	var out []models.ReportTemplate
	for _, t := range f.items {
		if t.IsSystemTemplate {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTemplates) Create(_ context.Context, tmpl *models.ReportTemplate) error {
	if tmpl.ID == uuid.Nil {
		tmpl.ID = uuid.New()
	}
	f.items = append(f.items, *tmpl)
	return nil
}

func (f *fakeTemplates) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	for i, t := range f.items {
		if t.ID == id && !t.IsSystemTemplate && t.OwnerID != nil && *t.OwnerID == ownerID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeRules struct {
	items []models.ScoreDescriptorRule
}

func (f *fakeRules) ListForOwner(_ context.Context, ownerID uuid.UUID) ([]models.ScoreDescriptorRule, error) {
	var out []models.ScoreDescriptorRule
	for _, r := range f.items {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRules) Create(_ context.Context, rule *models.ScoreDescriptorRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	f.items = append(f.items, *rule)
	return nil
}

func (f *fakeRules) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	for i, r := range f.items {
		if r.ID == id && r.OwnerID == ownerID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeAssessments struct {
	items []models.Assessment
}

func (f *fakeAssessments) Create(_ context.Context, a *models.Assessment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	for i := range a.Scores {
		a.Scores[i].AssessmentID = a.ID
		a.Scores[i].Position = i
	}
	f.items = append(f.items, *a)
	return nil
}

func (f *fakeAssessments) Get(_ context.Context, ownerID, id uuid.UUID) (*models.Assessment, error) {
	for _, a := range f.items {
		if a.ID == id && a.OwnerID == ownerID {
			c := a
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAssessments) ListScores(_ context.Context, assessmentID uuid.UUID) ([]models.ExtractedScore, error) {
	for _, a := range f.items {
		if a.ID != assessmentID {
			continue
		}
		out := make([]models.ExtractedScore, 0, len(a.Scores))
		for _, s := range a.Scores {
			out = append(out, s.ExtractedScore)
		}
		return out, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAssessments) ListIDs(_ context.Context, ownerID *uuid.UUID) ([]repository.AssessmentRef, error) {
	var out []repository.AssessmentRef
	for _, a := range f.items {
		if ownerID == nil || a.OwnerID == *ownerID {
			out = append(out, repository.AssessmentRef{ID: a.ID, OwnerID: a.OwnerID})
		}
	}
	return out, nil
}

type fakeAudit struct {
	entries []models.AuditLog
}

func (f *fakeAudit) Create(_ context.Context, entry *models.AuditLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAudit) ListRecent(_ context.Context, ownerID uuid.UUID, limit int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].OwnerID == ownerID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}
