package models

import "time"

// ResumeMark is the persisted playback position for a (content, profile) pair
type ResumeMark struct {
	CanonicalKey    string      `gorm:"primaryKey" json:"canonical_key"`
	ProfileID       string      `gorm:"primaryKey" json:"profile_id"`
	PositionMs      int64       `gorm:"not null" json:"position_ms"`
	DurationMs      int64       `gorm:"not null" json:"duration_ms"`
	PositionPercent float64     `gorm:"not null;index" json:"position_percent"`
	IsCompleted     bool        `gorm:"not null;index" json:"is_completed"`
	LastSourceType  *SourceType `json:"last_source_type,omitempty"`
	LastSourceID    *string     `json:"last_source_id,omitempty"`
	ClearedAt       *time.Time  `json:"cleared_at,omitempty"` // set when playback was explicitly reset
	UpdatedAt       time.Time   `gorm:"autoUpdateTime:false;index" json:"updated_at"`
}

// TableName pins the table name used by change notifications
func (ResumeMark) TableName() string { return TableResumeMarks }
