package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	InvitationPending   = "PENDING"
	InvitationAccepted  = "ACCEPTED"
	InvitationCompleted = "COMPLETED"
	InvitationExpired   = "EXPIRED"
)

// Invitation grants one candidate access to one simulation. The candidate may be
// identified by id or, before signup, by email.
type Invitation struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	SimulationID uint           `json:"simulation_id" gorm:"not null;index"`
	Simulation   Simulation     `json:"simulation,omitempty" gorm:"foreignKey:SimulationID"`
	CandidateID  *uint          `json:"candidate_id,omitempty" gorm:"index"`
	Email        *string        `json:"email,omitempty" gorm:"index"`
	Token        string         `json:"token" gorm:"not null;uniqueIndex"`
	Status       string         `json:"status" gorm:"default:'PENDING';index"`
	ExpiresAt    time.Time      `json:"expires_at" gorm:"not null;index"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
