package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Step types supported by the evaluation pipeline.
const (
	StepTypeConversational   = "conversational"
	StepTypeCodeReview       = "code_review"
	StepTypeDocumentAnalysis = "document_analysis"
)

type Step struct {
	ID                uint    `gorm:"primarykey" json:"id"`
	SimulationID      uint    `json:"simulation_id" gorm:"not null;index"`
	Title             string  `json:"title" gorm:"not null"`
	Instructions      string  `json:"instructions" gorm:"type:text;not null"`
	Type              string  `json:"type" gorm:"not null"` // "conversational", "code_review", "document_analysis"
	OrderInSimulation int     `json:"order_in_simulation" gorm:"not null"`
	Persona           *string `json:"persona,omitempty" gorm:"type:text"`
	// GradingSpec is the rubric for this step. It must never reach candidate-facing DTOs.
	GradingSpec datatypes.JSON `json:"-" gorm:"type:jsonb"`
	MaxScore    float64        `json:"max_score,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
