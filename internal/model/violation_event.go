package model

import (
	"time"

	"gorm.io/datatypes"
)

type ViolationType string

const (
	ViolationTabSwitch      ViolationType = "tab_switch"
	ViolationCopy           ViolationType = "copy"
	ViolationPaste          ViolationType = "paste"
	ViolationRightClick     ViolationType = "right_click"
	ViolationRestrictedKey  ViolationType = "restricted_key"
	ViolationInactivity     ViolationType = "inactivity"
	ViolationFullscreenExit ViolationType = "fullscreen_exit"
	ViolationScreenRecord   ViolationType = "screen_record"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ViolationEvent is one integrity signal attributed to a session. Rows are
// append-only; only Resolved may change after creation.
type ViolationEvent struct {
	ID        uint          `gorm:"primarykey" json:"id"`
	SessionID uint          `json:"session_id" gorm:"not null;index;uniqueIndex:idx_violations_dedupe"`
	Type      ViolationType `json:"type" gorm:"not null;index"`
	Severity  Severity      `json:"severity" gorm:"not null;index"`
	// DedupeKey makes Record idempotent under at-least-once signal delivery.
	DedupeKey  string         `json:"dedupe_key" gorm:"not null;uniqueIndex:idx_violations_dedupe"`
	StepID     *uint          `json:"step_id,omitempty" gorm:"index"`
	Metadata   datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	Resolved   bool           `json:"resolved" gorm:"default:false;index"`
	OccurredAt time.Time      `json:"occurred_at" gorm:"not null"`
	CreatedAt  time.Time      `json:"created_at"`
}
