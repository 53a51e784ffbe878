package model

import (
	"time"

	"github.com/google/uuid"
)

// DetectionRun is one audited upload completed through the console.
type DetectionRun struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID   uuid.UUID `gorm:"type:uuid" json:"session_id"`
	UserID      string    `json:"user_id,omitempty"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	Result      string    `json:"result"`
	Severity    string    `json:"severity,omitempty"`
	EntityCount int       `json:"entity_count"`
	DurationMS  int64     `gorm:"column:duration_ms" json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

func (DetectionRun) TableName() string {
	return "detection_runs"
}
