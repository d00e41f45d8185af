package models

import "time"

// StageType partitions workflow stages. Stages are ordered independently
// within each partition.
type StageType string

const (
	StageLead           StageType = "LEAD"
	StageProduction     StageType = "PRODUCTION"
	StagePostProduction StageType = "POST_PRODUCTION"
)

// Rank orders stage types as they occur in an event's life.
func (s StageType) Rank() int {
	switch s {
	case StageLead:
		return 0
	case StageProduction:
		return 1
	case StagePostProduction:
		return 2
	}
	return 3
}

// Valid reports whether s is a known stage type.
func (s StageType) Valid() bool {
	return s.Rank() < 3
}

// WorkflowTemplate is a reusable pipeline of stages an event moves through.
type WorkflowTemplate struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	Stages      []WorkflowStage `gorm:"foreignKey:WorkflowTemplateID" json:"stages,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (WorkflowTemplate) TableName() string {
	return "workflow_templates"
}

// WorkflowStage is one step of a template. Order is unique and dense within
// (WorkflowTemplateID, Stage).
type WorkflowStage struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	WorkflowTemplateID       uint      `gorm:"not null;uniqueIndex:idx_stage_position" json:"workflow_template_id"`
	Stage                    StageType `gorm:"not null;uniqueIndex:idx_stage_position" json:"stage"`
	Order                    int       `gorm:"column:position;not null;uniqueIndex:idx_stage_position" json:"order"`
	Name                     string    `gorm:"not null" json:"name"`
	Description              string    `gorm:"type:text" json:"description,omitempty"`
	TriggerOnPaymentReceived bool      `gorm:"not null;default:false" json:"trigger_on_payment_received"`
	AdvancementCriteria      string    `json:"advancement_criteria,omitempty"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

func (WorkflowStage) TableName() string {
	return "workflow_stages"
}
