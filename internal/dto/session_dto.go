package dto

import (
	"time"

	"gorm.io/datatypes"
)

// StepResponseDTO is the candidate-facing view of a step. It deliberately has no
// grading spec field; the rubric never reaches the candidate.
type StepResponseDTO struct {
	ID                uint   `json:"id"`
	SimulationID      uint   `json:"simulation_id"`
	Title             string `json:"title"`
	Instructions      string `json:"instructions"`
	Type              string `json:"type"`
	OrderInSimulation int    `json:"order_in_simulation"`
}

// SimulationResponseDTO is the candidate-facing view of a simulation.
type SimulationResponseDTO struct {
	ID              uint              `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	DurationSeconds int               `json:"duration_seconds"`
	Steps           []StepResponseDTO `json:"steps,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// SimulationSummaryDTO lists published simulations.
type SimulationSummaryDTO struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	StepCount       int       `json:"step_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// StepSubmitDTO is the request body for submitting one step.
type StepSubmitDTO struct {
	Content        datatypes.JSON `json:"content" binding:"required"`
	IntegrityFlags []string       `json:"integrity_flags"`
}

// SignalDTO is one fire-and-forget integrity signal.
type SignalDTO struct {
	Type       string         `json:"type" binding:"required"`
	OccurredAt time.Time      `json:"occurred_at" binding:"required"`
	DedupeKey  string         `json:"dedupe_key"`
	Metadata   datatypes.JSON `json:"metadata"`
}

// SubmissionResponseDTO acknowledges an accepted submission. A nil score with a
// pending evaluation status means "accepted, not yet graded", never zero.
type SubmissionResponseDTO struct {
	ID               uint     `json:"id"`
	SessionID        uint     `json:"session_id"`
	StepID           uint     `json:"step_id"`
	Score            *float64 `json:"score,omitempty"`
	Feedback         *string  `json:"feedback,omitempty"`
	EvaluationStatus string   `json:"evaluation_status"`
	Version          int      `json:"version"`
}

// SessionResponseDTO is the candidate view of a session.
type SessionResponseDTO struct {
	ID               uint       `json:"id"`
	SimulationID     uint       `json:"simulation_id"`
	CandidateID      uint       `json:"candidate_id"`
	Status           string     `json:"status"`
	Trigger          *string    `json:"trigger,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	TimeSpentSeconds int        `json:"time_spent_seconds"`
	IntegrityScore   *int       `json:"integrity_score,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
