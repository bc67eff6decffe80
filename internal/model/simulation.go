package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Simulation struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	Title           string         `json:"title" gorm:"not null;uniqueIndex"`
	Description     string         `json:"description,omitempty"`
	OwnerID         uint           `json:"owner_id" gorm:"not null;index"`
	DurationSeconds int            `json:"duration_seconds" gorm:"not null"`
	Published       bool           `json:"published" gorm:"default:false;index"`
	Rubric          datatypes.JSON `json:"rubric,omitempty" gorm:"type:jsonb"`
	Steps           []Step         `json:"steps,omitempty" gorm:"foreignKey:SimulationID"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}
