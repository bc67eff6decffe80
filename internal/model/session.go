package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	SessionInProgress = "IN_PROGRESS"
	SessionCompleted  = "COMPLETED"
	SessionExpired    = "EXPIRED"
)

// Completion triggers.
const (
	TriggerCandidate = "CANDIDATE"
	TriggerTimeout   = "TIMEOUT"
	TriggerForced    = "FORCED"
)

// Session is one candidate's attempt at one simulation. At most one non-expired
// session may exist per (candidate, simulation) pair. Sessions are never deleted;
// they are the audit trail.
type Session struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	SimulationID     uint           `json:"simulation_id" gorm:"not null;index:idx_sessions_pair"`
	Simulation       Simulation     `json:"simulation,omitempty" gorm:"foreignKey:SimulationID"`
	CandidateID      uint           `json:"candidate_id" gorm:"not null;index:idx_sessions_pair"`
	Status           string         `json:"status" gorm:"default:'IN_PROGRESS';index"`
	Trigger          *string        `json:"trigger,omitempty"` // "CANDIDATE", "TIMEOUT", "FORCED"
	StartedAt        time.Time      `json:"started_at" gorm:"not null"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	TimeSpentSeconds int            `json:"time_spent_seconds"`
	IntegrityScore   *int           `json:"integrity_score,omitempty"`
	Submissions      []Submission   `json:"submissions,omitempty" gorm:"foreignKey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// Terminal reports whether the session can no longer change state.
func (s *Session) Terminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionExpired
}
