package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Evaluation lifecycle of a submission.
const (
	EvaluationPending     = "pending"
	EvaluationScoring     = "scoring"
	EvaluationScored      = "scored"
	EvaluationNeedsReview = "needs_review"
)

// Submission is a candidate's recorded response to one step. There is exactly one
// row per (session, step); a resubmission overwrites content and unions integrity
// flags, bumping Version.
type Submission struct {
	ID        uint `gorm:"primarykey" json:"id"`
	SessionID uint `json:"session_id" gorm:"not null;uniqueIndex:idx_submissions_session_step"`
	StepID    uint `json:"step_id" gorm:"not null;uniqueIndex:idx_submissions_session_step"`
	Step      Step `json:"step,omitempty" gorm:"foreignKey:StepID"`
	// Content is the raw candidate response, shaped by the step type (chat
	// transcript, review comments, analysis text).
	Content          datatypes.JSON `json:"content" gorm:"type:jsonb;not null"`
	IntegrityFlags   datatypes.JSON `json:"integrity_flags,omitempty" gorm:"type:jsonb"`
	Score            *float64       `json:"score,omitempty"`
	Feedback         *string        `json:"feedback,omitempty" gorm:"type:text"`
	EvaluationStatus string         `json:"evaluation_status" gorm:"default:'pending';index"`
	Attempts         int            `json:"attempts"`
	Version          int            `json:"version" gorm:"default:1"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}
