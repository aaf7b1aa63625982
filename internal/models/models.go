package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Score types understood by subtests and descriptor rules.
const (
	ScoreTypeStandard   = "standard"
	ScoreTypeScaled     = "scaled"
	ScoreTypePercentile = "percentile"
)

// JSONB custom type for JSON fields
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONB)
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("unsupported JSONB source %T", value)
	}
}

// Base model with UUID
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Subtest is one entry of a test definition's subtest list. It is stored
// inside the definition's JSON column, never as its own row.
type Subtest struct {
	CanonicalName string   `json:"canonical_name"`
	DisplayName   string   `json:"display_name"`
	Aliases       []string `json:"aliases"`
	ScoreType     string   `json:"score_type"`
	IsUserDefined bool     `json:"is_user_defined"`
}

// TestDefinition is a curated (or learned) test bank entry used to resolve
// free-text test and subtest names.
type TestDefinition struct {
	BaseModel
	OwnerID          *uuid.UUID                   `gorm:"type:char(36);index" json:"owner_id,omitempty"`
	TestName         string                       `gorm:"type:varchar(255);not null" json:"test_name"`
	TestAliases      datatypes.JSONSlice[string]  `json:"test_aliases"`
	Subtests         datatypes.JSONSlice[Subtest] `json:"subtests"`
	IsSystemTemplate bool                         `gorm:"default:false;index" json:"is_system_template"`
	Version          int                          `gorm:"not null" json:"version"`
}

func (d *TestDefinition) BeforeCreate(tx *gorm.DB) error {
	if d.Version == 0 {
		d.Version = 1
	}
	return d.BaseModel.BeforeCreate(tx)
}

// OwnedBy reports whether the definition belongs to the given user.
func (d *TestDefinition) OwnedBy(ownerID uuid.UUID) bool {
	return !d.IsSystemTemplate && d.OwnerID != nil && *d.OwnerID == ownerID
}

// Clone returns a deep copy, so callers can mutate subtests and aliases
// without touching the original.
func (d TestDefinition) Clone() TestDefinition {
	out := d
	out.TestAliases = append(datatypes.JSONSlice[string](nil), d.TestAliases...)
	out.Subtests = make(datatypes.JSONSlice[Subtest], len(d.Subtests))
	for i, st := range d.Subtests {
		st.Aliases = append([]string(nil), st.Aliases...)
		out.Subtests[i] = st
	}
	return out
}

// ExtractedScore is one score produced by the upstream extraction service.
// CanonicalName and DisplayName are filled in by the subtest mapper.
type ExtractedScore struct {
	TestName        string   `gorm:"type:varchar(255);not null;index" json:"test_name"`
	SubtestName     string   `gorm:"type:varchar(255)" json:"subtest_name"`
	ScaledScore     *float64 `gorm:"type:decimal(8,2)" json:"scaled_score,omitempty"`
	CompositeScore  *float64 `gorm:"type:decimal(8,2)" json:"composite_score,omitempty"`
	PercentileRank  *float64 `gorm:"type:decimal(6,2)" json:"percentile_rank,omitempty"`
	Descriptor      *string  `gorm:"type:varchar(100)" json:"descriptor,omitempty"`
	PercentileRange *string  `gorm:"type:varchar(50)" json:"percentile_range,omitempty"`
	CanonicalName   string   `gorm:"type:varchar(255)" json:"canonical_name,omitempty"`
	DisplayName     string   `gorm:"type:varchar(255)" json:"display_name,omitempty"`
}

// ExtractionResult is the structured payload handed over by the extraction
// service.
type ExtractionResult struct {
	Tests []ExtractedTest `json:"tests" binding:"dive"`
}

type ExtractedTest struct {
	TestName string           `json:"test_name" binding:"required"`
	Scores   []ExtractedScore `json:"scores"`
}

// Flatten returns every score with its test name filled in from the group.
func (r ExtractionResult) Flatten() []ExtractedScore {
	var out []ExtractedScore
	for _, t := range r.Tests {
		for _, s := range t.Scores {
			s.TestName = t.TestName
			out = append(out, s)
		}
	}
	return out
}

// Assessment is a saved batch of scores for one client.
type Assessment struct {
	BaseModel
	OwnerID         uuid.UUID         `gorm:"type:char(36);not null;index" json:"owner_id"`
	ClientFirstName string            `gorm:"type:varchar(100)" json:"client_first_name"`
	ClientLastName  string            `gorm:"type:varchar(100)" json:"client_last_name"`
	ClientGender    string            `gorm:"type:varchar(20)" json:"client_gender"`
	TestDate        time.Time         `gorm:"type:date" json:"test_date"`
	Scores          []AssessmentScore `gorm:"foreignKey:AssessmentID" json:"scores,omitempty"`
}

// AssessmentScore persists one ExtractedScore of an assessment.
type AssessmentScore struct {
	BaseModel
	AssessmentID   uuid.UUID `gorm:"type:char(36);not null;index" json:"assessment_id"`
	Position       int       `gorm:"not null;default:0" json:"position"`
	ExtractedScore `gorm:"embedded"`
}

// ScoreDescriptorRule is a user-owned override of the system descriptor
// tables. MaxScore nil means unbounded.
type ScoreDescriptorRule struct {
	BaseModel
	OwnerID         uuid.UUID `gorm:"type:char(36);not null;index" json:"owner_id"`
	ScoreType       string    `gorm:"type:varchar(20);not null" json:"score_type" binding:"required,oneof=standard scaled percentile"`
	MinScore        float64   `gorm:"type:decimal(8,2);not null" json:"min_score"`
	MaxScore        *float64  `gorm:"type:decimal(8,2)" json:"max_score"`
	Descriptor      string    `gorm:"type:varchar(100);not null" json:"descriptor" binding:"required"`
	PercentileRange string    `gorm:"type:varchar(50)" json:"percentile_range"`
}

// ReportTemplate holds narrative text with placeholders for one test type.
type ReportTemplate struct {
	BaseModel
	OwnerID          *uuid.UUID `gorm:"type:char(36);index" json:"owner_id,omitempty"`
	Name             string     `gorm:"type:varchar(255)" json:"name"`
	TestType         string     `gorm:"type:varchar(255);not null" json:"test_type" binding:"required"`
	TemplateContent  string     `gorm:"type:text;not null" json:"template_content" binding:"required"`
	IsSystemTemplate bool       `gorm:"default:false;index" json:"is_system_template"`
}

// AuditLog tracks changes made to the test bank
type AuditLog struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	OwnerID      uuid.UUID `gorm:"type:char(36);index" json:"owner_id"`
	Action       string    `gorm:"type:varchar(50);not null" json:"action"`
	ResourceType string    `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   uuid.UUID `gorm:"type:char(36);index" json:"resource_id"`
	Before       JSONB     `gorm:"type:json" json:"before"`
	After        JSONB     `gorm:"type:json" json:"after"`
	Timestamp    time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
