package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/psych-report/backend/internal/config"
	"github.com/psych-report/backend/internal/descriptor"
	"github.com/psych-report/backend/internal/models"
	"github.com/psych-report/backend/internal/report"
	"github.com/psych-report/backend/internal/repository"
)

func f(v float64) *float64 { return &v }

func scores(test string, subtests ...string) []models.ExtractedScore {
	out := make([]models.ExtractedScore, 0, len(subtests))
	for _, st := range subtests {
		out = append(out, models.ExtractedScore{TestName: test, SubtestName: st, ScaledScore: f(10)})
	}
	return out
}

func ownedDefinition(owner uuid.UUID, name string, subtests ...models.Subtest) models.TestDefinition {
	return models.TestDefinition{
		BaseModel:   models.BaseModel{ID: uuid.New()},
		OwnerID:     &owner,
		TestName:    name,
		TestAliases: []string{name},
		Subtests:    subtests,
		Version:     1,
	}
}

func TestLearningService_CreatesThenMerges(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	defs := &fakeDefinitions{}
	audit := &fakeAudit{}
	svc := NewLearningService(defs, NewAuditService(audit), zap.NewNop(), 3)

	first := svc.Learn(ctx, owner, scores("WISC-V", "Block Design", "Similarities"))
	assert.Equal(t, []string{"WISC-V"}, first.Created)
	assert.Empty(t, first.Updated)
	assert.Equal(t, 2, first.AddedSubtests)

	second := svc.Learn(ctx, owner, scores("WISC-V", "Block Design", "Digit Span"))
	assert.Empty(t, second.Created)
	assert.Equal(t, []string{"WISC-V"}, second.Updated)
	assert.Equal(t, 1, second.AddedSubtests)

	third := svc.Learn(ctx, owner, scores("WISC-V", "Block Design", "Digit Span"))
	assert.Empty(t, third.Created)
	assert.Empty(t, third.Updated)
	assert.Empty(t, third.Failed)

	owned := defs.owned(owner)
	require.Len(t, owned, 1)
	assert.Len(t, owned[0].Subtests, 3)
	assert.Equal(t, 2, owned[0].Version)

	require.Len(t, audit.entries, 2)
	assert.Equal(t, AuditActionLearnCreate, audit.entries[0].Action)
	assert.Equal(t, AuditActionLearnMerge, audit.entries[1].Action)
}

func TestLearningService_LaterGroupsSeeEarlierResults(t *testing.T) {
	owner := uuid.New()
	defs := &fakeDefinitions{}
	svc := NewLearningService(defs, nil, zap.NewNop(), 3)

	in := append(scores("WAIS-5", "Vocabulary"), scores("WAIS 5", "Matrix Reasoning")...)
	summary := svc.Learn(context.Background(), owner, in)

	assert.Equal(t, []string{"WAIS-5"}, summary.Created)
	assert.Equal(t, []string{"WAIS-5"}, summary.Updated)
	require.Len(t, defs.owned(owner), 1)
}

func TestLearningService_RetriesOnVersionConflict(t *testing.T) {
	owner := uuid.New()
	defs := &fakeDefinitions{
		defs: []models.TestDefinition{
			ownedDefinition(owner, "WISC-V", models.Subtest{CanonicalName: "block_design", DisplayName: "Block Design"}),
		},
		conflicts: 1,
	}
	svc := NewLearningService(defs, nil, zap.NewNop(), 3)

	summary := svc.Learn(context.Background(), owner, scores("WISC-V", "Digit Span"))

	assert.Equal(t, []string{"WISC-V"}, summary.Updated)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, 2, defs.updateCalls)
	owned := defs.owned(owner)
	require.Len(t, owned, 1)
	assert.Len(t, owned[0].Subtests, 2)
}

func TestLearningService_GivesUpAfterMaxRetries(t *testing.T) {
	owner := uuid.New()
	defs := &fakeDefinitions{
		defs:      []models.TestDefinition{ownedDefinition(owner, "WISC-V")},
		conflicts: 10,
	}
	svc := NewLearningService(defs, nil, zap.NewNop(), 2)

	summary := svc.Learn(context.Background(), owner, scores("WISC-V", "Digit Span"))

	assert.Equal(t, []string{"WISC-V"}, summary.Failed)
	assert.Empty(t, summary.Updated)
	assert.Equal(t, 2, defs.updateCalls)
}

func TestLearningService_RecoversFromPanic(t *testing.T) {
	defs := &fakeDefinitions{panicOnList: true}
	svc := NewLearningService(defs, nil, zap.NewNop(), 3)

	var summary LearningSummary
	assert.NotPanics(t, func() {
		summary = svc.Learn(context.Background(), uuid.New(), scores("Conners 4", "Inattention"))
	})
	assert.Equal(t, []string{"Conners 4"}, summary.Failed)
}

func TestLearningService_NeverMergesIntoSystemDefinitions(t *testing.T) {
	owner := uuid.New()
	system := models.TestDefinition{
		BaseModel:        models.BaseModel{ID: uuid.New()},
		TestName:         "WISC-V",
		IsSystemTemplate: true,
		Version:          1,
	}
	defs := &fakeDefinitions{defs: []models.TestDefinition{system}}
	svc := NewLearningService(defs, nil, zap.NewNop(), 3)

	summary := svc.Learn(context.Background(), owner, scores("WISC-V", "Digit Span"))

	assert.Equal(t, []string{"WISC-V"}, summary.Created)
	stored, err := defs.Get(context.Background(), system.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Subtests)
}

func TestCatalogService_CreateDefinition(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	defs := &fakeDefinitions{defs: []models.TestDefinition{ownedDefinition(owner, "Conners 4", models.Subtest{CanonicalName: "inattention"})}}
	defs.defs[0].TestAliases = []string{"Conners Fourth Edition"}
	audit := &fakeAudit{}
	svc := NewCatalogService(defs, &fakeTemplates{}, &fakeRules{}, NewAuditService(audit), zap.NewNop())

	def, warnings, err := svc.CreateDefinition(ctx, owner, DefinitionInput{
		TestName:    " Conners-4 Parent ",
		TestAliases: []string{"Conners Fourth Edition", "Conners Fourth Edition", ""},
		Subtests: []SubtestInput{
			{DisplayName: "Inattention / Executive Dysfunction"},
			{CanonicalName: "hyperactivity", DisplayName: "Hyperactivity", ScoreType: models.ScoreTypeScaled},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Conners-4 Parent", def.TestName)
	assert.Equal(t, []string{"Conners Fourth Edition"}, []string(def.TestAliases))
	require.Len(t, def.Subtests, 2)
	assert.Equal(t, "inattention_executive_dysfunction", def.Subtests[0].CanonicalName)
	assert.Equal(t, models.ScoreTypeStandard, def.Subtests[0].ScoreType)
	assert.True(t, def.Subtests[0].IsUserDefined)
	assert.Equal(t, models.ScoreTypeScaled, def.Subtests[1].ScoreType)
	require.NotNil(t, def.OwnerID)
	assert.Equal(t, owner, *def.OwnerID)

	assert.Equal(t, []string{"Conners Fourth Edition already resolves to Conners 4"}, warnings)
	assert.Len(t, defs.owned(owner), 2)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "test_definition", audit.entries[0].ResourceType)
}

func TestCatalogService_CreateDefinition_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   DefinitionInput
	}{
		{"missing name", DefinitionInput{TestName: "  "}},
		{"duplicate canonical", DefinitionInput{TestName: "X", Subtests: []SubtestInput{
			{DisplayName: "Block Design"},
			{CanonicalName: "block_design", DisplayName: "BD"},
		}}},
		{"unusable subtest name", DefinitionInput{TestName: "X", Subtests: []SubtestInput{{DisplayName: "???"}}}},
		{"bad score type", DefinitionInput{TestName: "X", Subtests: []SubtestInput{{DisplayName: "A", ScoreType: "raw"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewCatalogService(&fakeDefinitions{}, &fakeTemplates{}, &fakeRules{}, nil, zap.NewNop())
			_, _, err := svc.CreateDefinition(context.Background(), uuid.New(), tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestCatalogService_GetDefinitionVisibility(t *testing.T) {
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()
	mine := ownedDefinition(owner, "Mine")
	theirs := ownedDefinition(other, "Theirs")
	system := models.TestDefinition{BaseModel: models.BaseModel{ID: uuid.New()}, TestName: "System", IsSystemTemplate: true}
	svc := NewCatalogService(&fakeDefinitions{defs: []models.TestDefinition{mine, theirs, system}}, &fakeTemplates{}, &fakeRules{}, nil, zap.NewNop())

	_, err := svc.GetDefinition(ctx, owner, mine.ID)
	assert.NoError(t, err)
	_, err = svc.GetDefinition(ctx, owner, system.ID)
	assert.NoError(t, err)
	_, err = svc.GetDefinition(ctx, owner, theirs.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCatalogService_TemplatesAndRules(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	templates := &fakeTemplates{items: []models.ReportTemplate{
		{BaseModel: models.BaseModel{ID: uuid.New()}, TestType: "WISC-V", IsSystemTemplate: true},
	}}
	rules := &fakeRules{}
	svc := NewCatalogService(&fakeDefinitions{}, templates, rules, nil, zap.NewNop())

	tmpl := &models.ReportTemplate{TestType: "WISC-V", TemplateContent: "x", IsSystemTemplate: true}
	require.NoError(t, svc.CreateTemplate(ctx, owner, tmpl))
	assert.False(t, tmpl.IsSystemTemplate)

	set, err := svc.ListTemplates(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, set.Personal, 1)
	assert.Len(t, set.System, 1)

	require.NoError(t, svc.DeleteTemplate(ctx, owner, tmpl.ID))
	assert.ErrorIs(t, svc.DeleteTemplate(ctx, owner, set.System[0].ID), repository.ErrNotFound)

	err = svc.CreateRule(ctx, owner, &models.ScoreDescriptorRule{ScoreType: models.ScoreTypeStandard, MinScore: 80, MaxScore: f(70), Descriptor: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	rule := &models.ScoreDescriptorRule{ScoreType: models.ScoreTypeStandard, MinScore: 70, MaxScore: f(79), Descriptor: "Custom Low"}
	require.NoError(t, svc.CreateRule(ctx, owner, rule))
	assert.Equal(t, owner, rule.OwnerID)

	listed, err := svc.ListRules(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
	require.NoError(t, svc.DeleteRule(ctx, owner, rule.ID))
}

func TestAssessmentService_SaveRunsLearning(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	defs := &fakeDefinitions{}
	assessments := &fakeAssessments{}
	svc := NewAssessmentService(assessments, NewLearningService(defs, nil, zap.NewNop(), 3), zap.NewNop())

	res, err := svc.Save(ctx, owner, SaveAssessmentInput{
		ClientFirstName: "Sam",
		TestDate:        time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		Extraction: models.ExtractionResult{Tests: []models.ExtractedTest{
			{TestName: "WISC-V", Scores: []models.ExtractedScore{{SubtestName: "Block Design", ScaledScore: f(9)}}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"WISC-V"}, res.Learning.Created)
	require.Len(t, res.Assessment.Scores, 1)
	assert.Equal(t, "WISC-V", res.Assessment.Scores[0].TestName)

	got, err := svc.Get(ctx, owner, res.Assessment.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sam", got.ClientFirstName)
}

func TestAssessmentService_SaveRejectsEmpty(t *testing.T) {
	svc := NewAssessmentService(&fakeAssessments{}, NewLearningService(&fakeDefinitions{}, nil, zap.NewNop(), 3), zap.NewNop())
	_, err := svc.Save(context.Background(), uuid.New(), SaveAssessmentInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAssessmentService_Backfill(t *testing.T) {
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	assessments := &fakeAssessments{}
	for _, a := range []models.Assessment{
		{OwnerID: alice, Scores: []models.AssessmentScore{{ExtractedScore: scores("WISC-V", "Block Design")[0]}}},
		{OwnerID: alice, Scores: []models.AssessmentScore{{ExtractedScore: scores("WISC-V", "Digit Span")[0]}}},
		{OwnerID: bob, Scores: []models.AssessmentScore{{ExtractedScore: scores("BASC-3", "Anxiety")[0]}}},
	} {
		require.NoError(t, assessments.Create(ctx, &a))
	}
	defs := &fakeDefinitions{}
	svc := NewAssessmentService(assessments, NewLearningService(defs, nil, zap.NewNop(), 3), zap.NewNop())

	onlyAlice, err := svc.Backfill(ctx, &alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"WISC-V"}, onlyAlice.Created)
	assert.Equal(t, []string{"WISC-V"}, onlyAlice.Updated)
	assert.Equal(t, 2, onlyAlice.AddedSubtests)
	assert.Empty(t, defs.owned(bob))

	all, err := svc.Backfill(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"BASC-3"}, all.Created)
	assert.Empty(t, all.Updated)
}

func TestReportService_Render(t *testing.T) {
	owner := uuid.New()
	system := models.TestDefinition{
		BaseModel:        models.BaseModel{ID: uuid.New()},
		TestName:         "WISC-V",
		IsSystemTemplate: true,
		Subtests:         []models.Subtest{{CanonicalName: "full_scale_iq", DisplayName: "Full Scale IQ", Aliases: []string{"FSIQ"}}},
	}
	templates := &fakeTemplates{items: []models.ReportTemplate{{
		BaseModel:        models.BaseModel{ID: uuid.New()},
		TestType:         "WISC-V",
		TemplateContent:  "{{client_first_name}}: {{full_scale_iq_descriptor}}. {{pronoun_subjective}} did well.",
		IsSystemTemplate: true,
	}}}
	rules := &fakeRules{items: []models.ScoreDescriptorRule{
		{BaseModel: models.BaseModel{ID: uuid.New()}, OwnerID: owner, ScoreType: models.ScoreTypeStandard, MinScore: 100, Descriptor: "Solid"},
	}}
	svc := NewReportService(&fakeDefinitions{defs: []models.TestDefinition{system}}, templates, rules,
		config.ReportConfig{DateLayout: report.DefaultDateLayout}, zap.NewNop())

	out, err := svc.Render(context.Background(), owner, RenderInput{
		Client: report.Client{FirstName: "Ada", Gender: "female"},
		Extraction: models.ExtractionResult{Tests: []models.ExtractedTest{
			{TestName: "WISC V", Scores: []models.ExtractedScore{{SubtestName: "FSIQ", CompositeScore: f(104)}}},
		}},
	})
	require.NoError(t, err)
	require.Len(t, out.Sections, 1)
	assert.Equal(t, "Ada: Solid. She did well.", out.Sections[0].Content)
	assert.Empty(t, out.Warnings)
}

func TestReportService_ExplainDescriptorFallbackOverride(t *testing.T) {
	svc := NewReportService(&fakeDefinitions{}, &fakeTemplates{}, &fakeRules{},
		config.ReportConfig{AllowFallbackDescriptor: false}, zap.NewNop())
	upstream := "Elevated"
	score := models.ExtractedScore{Descriptor: &upstream}

	res, err := svc.ExplainDescriptor(context.Background(), uuid.New(), score, nil)
	require.NoError(t, err)
	assert.Equal(t, descriptor.NotAvailable, res.Descriptor)

	allow := true
	res, err = svc.ExplainDescriptor(context.Background(), uuid.New(), score, &allow)
	require.NoError(t, err)
	assert.Equal(t, "Elevated", res.Descriptor)
	assert.Equal(t, descriptor.SourceUpstream, res.Source)
}

func TestReportService_Preview(t *testing.T) {
	svc := NewReportService(&fakeDefinitions{}, &fakeTemplates{}, &fakeRules{}, config.ReportConfig{}, zap.NewNop())

	got := svc.Preview("{{IF:score:>=:65:high:low}} for {{client_first_name}}. he said hi.", map[string]string{
		"score":                 "70",
		"{{client_first_name}}": "Jo",
	})
	assert.Equal(t, "high for Jo. He said hi.", got)
}

func TestReportService_MatchAndResolve(t *testing.T) {
	owner := uuid.New()
	templates := &fakeTemplates{items: []models.ReportTemplate{
		{BaseModel: models.BaseModel{ID: uuid.New()}, TestType: "BASC-3", IsSystemTemplate: true},
	}}
	defs := &fakeDefinitions{defs: []models.TestDefinition{ownedDefinition(owner, "BASC-3")}}
	svc := NewReportService(defs, templates, &fakeRules{}, config.ReportConfig{}, zap.NewNop())

	tmpl, err := svc.MatchTemplate(context.Background(), owner, "basc 3")
	require.NoError(t, err)
	require.NotNil(t, tmpl)

	tmpl, err = svc.MatchTemplate(context.Background(), owner, "Conners 4")
	require.NoError(t, err)
	assert.Nil(t, tmpl)

	res, err := svc.ResolveTest(context.Background(), owner, "BASC 3")
	require.NoError(t, err)
	assert.Equal(t, "BASC-3", res.DisplayName)
}

func TestAuditService_RecentClampsLimit(t *testing.T) {
	owner := uuid.New()
	repo := &fakeAudit{}
	svc := NewAuditService(repo)
	for i := 0; i < 30; i++ {
		require.NoError(t, svc.Log(context.Background(), owner, AuditActionCreate, "report_template", uuid.New(), nil, nil))
	}

	tests := []struct {
		limit int
		want  int
	}{
		{0, 20},
		{5, 5},
		{500, 20},
	}
	for _, tt := range tests {
		got, err := svc.Recent(context.Background(), owner, tt.limit)
		require.NoError(t, err)
		assert.Len(t, got, tt.want)
	}
}
