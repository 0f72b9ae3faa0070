package models

import "time"

// IntegrityFault journals a rejected write that would have corrupted an existing record
type IntegrityFault struct {
	ID           string     `gorm:"primaryKey" json:"id"`
	CanonicalKey string     `gorm:"not null;index" json:"canonical_key"`
	StoredKind   MediaKind  `json:"stored_kind"`
	IncomingKind MediaKind  `json:"incoming_kind"`
	SourceType   SourceType `json:"source_type"`
	SourceID     string     `json:"source_id"`
	RawTitle     string     `json:"raw_title"`
	Reason       string     `json:"reason"`
	OccurredAt   time.Time  `gorm:"not null;index" json:"occurred_at"`
}

// TableName pins the table name
func (IntegrityFault) TableName() string { return TableIntegrityFaults }
