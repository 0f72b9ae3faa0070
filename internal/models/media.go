package models

import "time"

// ExternalIDs holds references into third-party catalogs
type ExternalIDs struct {
	TmdbRef *string `json:"tmdb_ref,omitempty"` // "movie:603" or "tv:1399:1:2"
	ImdbID  *string `json:"imdb_id,omitempty"`
	TvdbID  *string `json:"tvdb_id,omitempty"`
}

// Images holds artwork URLs
type Images struct {
	Poster    *string `json:"poster,omitempty"`
	Backdrop  *string `json:"backdrop,omitempty"`
	Thumbnail *string `json:"thumbnail,omitempty"`
}

// RawMediaMetadata is the record every ingestion source emits per item
type RawMediaMetadata struct {
	Title       string      `json:"title"`
	MediaType   MediaKind   `json:"media_type,omitempty"` // advisory, identity is derived from season/episode
	Year        *int        `json:"year,omitempty"`
	Season      *int        `json:"season,omitempty"`
	Episode     *int        `json:"episode,omitempty"`
	ExternalIDs ExternalIDs `json:"external_ids"`
	Images      Images      `json:"images"`
	DurationMs  *int64      `json:"duration_ms,omitempty"`
	Rating      *float64    `json:"rating,omitempty"`
}

// SourceRef tags a raw record with the source that produced it
type SourceRef struct {
	SourceType SourceType `json:"source_type"`
	SourceID   string     `json:"source_id"`
	Label      string     `json:"label,omitempty"`
}

// IngestRecord is a raw record together with its source tag
type IngestRecord struct {
	Source SourceRef        `json:"source"`
	Raw    RawMediaMetadata `json:"raw"`
}

// CanonicalMediaID identifies one real-world piece of content
type CanonicalMediaID struct {
	Kind MediaKind `json:"kind"`
	Key  string    `json:"key"`
}

// String returns the key, which is unique across kinds
func (id CanonicalMediaID) String() string {
	return id.Key
}

// CanonicalMedia is the merged record for one piece of content across all sources
type CanonicalMedia struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	CanonicalKey   string    `gorm:"uniqueIndex;not null" json:"canonical_key"`
	Kind           MediaKind `gorm:"not null" json:"kind"`
	CanonicalTitle string    `gorm:"not null" json:"canonical_title"`
	Year           *int      `json:"year,omitempty"`

	// Episode specific fields
	Season  *int `json:"season,omitempty"`
	Episode *int `json:"episode,omitempty"`

	ExternalIDs ExternalIDs `gorm:"embedded;embeddedPrefix:ext_" json:"external_ids"`
	Images      Images      `gorm:"embedded;embeddedPrefix:img_" json:"images"`
	DurationMs  *int64      `json:"duration_ms,omitempty"`
	Rating      *float64    `json:"rating,omitempty"`

	// Enrichment state, only touched by enrichment operations
	ResolveState       ResolveState `gorm:"not null;default:unresolved;index" json:"resolve_state"`
	ResolvedBy         *ResolvedBy  `json:"resolved_by,omitempty"`
	LastResolvedAt     *time.Time   `json:"last_resolved_at,omitempty"`
	ResolveAttempts    int          `gorm:"not null;default:0" json:"resolve_attempts"`
	ConsecutiveFails   int          `gorm:"not null;default:0" json:"consecutive_fails"`
	LastFailureReason  *string      `json:"last_failure_reason,omitempty"`
	NextEligibleAt     *time.Time   `gorm:"index" json:"next_eligible_at,omitempty"`
	PendingSince       *time.Time   `json:"pending_since,omitempty"`
	EnrichmentDisabled bool         `gorm:"not null;default:false" json:"enrichment_disabled"`

	Sources []MediaSourceRef `gorm:"foreignKey:CanonicalKey;references:CanonicalKey" json:"sources,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime:false;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false;index" json:"updated_at"`
}

// TableName pins the table name used by change notifications
func (CanonicalMedia) TableName() string { return TableCanonicalMedia }

// MediaID returns the canonical identity of the record
func (m *CanonicalMedia) MediaID() CanonicalMediaID {
	return CanonicalMediaID{Kind: m.Kind, Key: m.CanonicalKey}
}

// HasExternalRef reports whether enrichment can refresh by known id
func (m *CanonicalMedia) HasExternalRef() bool {
	return m.ExternalIDs.TmdbRef != nil && *m.ExternalIDs.TmdbRef != ""
}

// MediaSourceRef records that a source has a copy of a canonical item.
// It is a back-reference only and never drives identity.
type MediaSourceRef struct {
	ID           uint       `gorm:"primaryKey" json:"-"`
	CanonicalKey string     `gorm:"not null;uniqueIndex:idx_source_ref" json:"canonical_key"`
	SourceType   SourceType `gorm:"not null;uniqueIndex:idx_source_ref" json:"source_type"`
	SourceID     string     `gorm:"not null;uniqueIndex:idx_source_ref" json:"source_id"`
	Label        *string    `json:"label,omitempty"`
	AddedAt      time.Time  `gorm:"not null" json:"added_at"`
}

// TableName pins the table name used by change notifications
func (MediaSourceRef) TableName() string { return TableMediaSourceRefs }

// EnrichedMetadata is what the enrichment collaborator returns
type EnrichedMetadata struct {
	ExternalIDs ExternalIDs `json:"external_ids"`
	Images      Images      `json:"images"`
	Year        *int        `json:"year,omitempty"`
}

// IsEmpty reports whether no field carries a value
func (e EnrichedMetadata) IsEmpty() bool {
	return e.ExternalIDs.TmdbRef == nil && e.ExternalIDs.ImdbID == nil && e.ExternalIDs.TvdbID == nil &&
		e.Images.Poster == nil && e.Images.Backdrop == nil && e.Images.Thumbnail == nil &&
		e.Year == nil
}
