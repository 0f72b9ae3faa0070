package models

// MediaKind represents the kind of a canonical media item
type MediaKind string

const (
	MediaKindMovie   MediaKind = "movie"
	MediaKindEpisode MediaKind = "episode"
)

// SourceType identifies the ingestion source that saw a piece of content.
// The set is closed: SourceUnknown is the only fallback and there is no catch-all bucket.
type SourceType string

const (
	SourceXtream   SourceType = "xtream"
	SourceTelegram SourceType = "telegram"
	SourceIo       SourceType = "io"
	SourceUnknown  SourceType = "unknown"
)

// IngestSourceTypes lists the source types an ingestion record may carry
var IngestSourceTypes = []SourceType{SourceXtream, SourceTelegram, SourceIo}

// Valid reports whether the source type names a real ingestion source
func (s SourceType) Valid() bool {
	switch s {
	case SourceXtream, SourceTelegram, SourceIo:
		return true
	default:
		return false
	}
}

// ParseSourceType maps a string onto the closed source set.
// Anything that is not a known source becomes SourceUnknown.
func ParseSourceType(value string) SourceType {
	s := SourceType(value)
	if s.Valid() {
		return s
	}
	return SourceUnknown
}

// ResolveState represents the enrichment state of a canonical media item
type ResolveState string

const (
	ResolveUnresolved ResolveState = "unresolved"
	ResolvePending    ResolveState = "pending"
	ResolveResolved   ResolveState = "resolved"
	ResolveFailed     ResolveState = "failed"
)

// ResolvedBy records how an item was resolved
type ResolvedBy string

const (
	ResolvedByDetailsRefresh ResolvedBy = "details_refresh" // refreshed by catalog reference
	ResolvedBySearchMatch    ResolvedBy = "search_match"    // matched by title search
	ResolvedByManual         ResolvedBy = "manual"          // requested for a single entity
)
