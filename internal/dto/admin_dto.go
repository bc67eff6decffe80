package dto

import (
	"time"

	"gorm.io/datatypes"
)

// StepCreateDTO is used within SimulationCreateDTO for admin simulation creation.
type StepCreateDTO struct {
	Title             string         `json:"title" binding:"required"`
	Instructions      string         `json:"instructions" binding:"required"`
	Type              string         `json:"type" binding:"required,oneof=conversational code_review document_analysis"`
	OrderInSimulation int            `json:"order_in_simulation" binding:"required,min=1"`
	Persona           *string        `json:"persona"`
	GradingSpec       datatypes.JSON `json:"grading_spec" binding:"required"`
	MaxScore          float64        `json:"max_score"`
}

// SimulationCreateDTO is for an author to create a new simulation with its steps.
type SimulationCreateDTO struct {
	Title           string          `json:"title" binding:"required"`
	Description     string          `json:"description,omitempty"`
	DurationSeconds int             `json:"duration_seconds" binding:"required,gt=0"`
	Rubric          datatypes.JSON  `json:"rubric"`
	Steps           []StepCreateDTO `json:"steps" binding:"required,min=1,dive"`
}

// SimulationGenerateDTO asks the pipeline to draft steps from a job description.
type SimulationGenerateDTO struct {
	Title           string   `json:"title" binding:"required"`
	JobDescription  string   `json:"job_description" binding:"required"`
	Requirements    []string `json:"requirements"`
	DurationSeconds int      `json:"duration_seconds" binding:"required,gt=0"`
}

// InvitationCreateDTO grants one candidate access to a simulation.
type InvitationCreateDTO struct {
	CandidateID *uint   `json:"candidate_id"`
	Email       *string `json:"email" binding:"omitempty,email"`
	TTLHours    int     `json:"ttl_hours" binding:"required,gt=0"`
}

type InvitationResponseDTO struct {
	ID           uint      `json:"id"`
	SimulationID uint      `json:"simulation_id"`
	CandidateID  *uint     `json:"candidate_id,omitempty"`
	Email        *string   `json:"email,omitempty"`
	Token        string    `json:"token"`
	Status       string    `json:"status"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ViolationEventDTO is the admin review view of one ledger entry.
type ViolationEventDTO struct {
	ID         uint           `json:"id"`
	SessionID  uint           `json:"session_id"`
	Type       string         `json:"type"`
	Severity   string         `json:"severity"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	Resolved   bool           `json:"resolved"`
	OccurredAt time.Time      `json:"occurred_at"`
}
