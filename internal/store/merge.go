package store

import (
	"strings"
	"time"

	"github.com/amaumene/catalogarr/internal/identity"
	"github.com/amaumene/catalogarr/internal/models"
)

// cleanRaw turns blank strings and non-positive durations into absent values
func cleanRaw(raw models.RawMediaMetadata) models.RawMediaMetadata {
	raw.ExternalIDs = models.ExternalIDs{
		TmdbRef: cleanString(raw.ExternalIDs.TmdbRef),
		ImdbID:  cleanString(raw.ExternalIDs.ImdbID),
		TvdbID:  cleanString(raw.ExternalIDs.TvdbID),
	}
	raw.Images = models.Images{
		Poster:    cleanString(raw.Images.Poster),
		Backdrop:  cleanString(raw.Images.Backdrop),
		Thumbnail: cleanString(raw.Images.Thumbnail),
	}
	if raw.DurationMs != nil && *raw.DurationMs <= 0 {
		raw.DurationMs = nil
	}
	return raw
}

func cleanString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func newCanonical(ident identity.Identity, raw models.RawMediaMetadata, now time.Time) models.CanonicalMedia {
	return models.CanonicalMedia{
		CanonicalKey:   ident.ID.Key,
		Kind:           ident.ID.Kind,
		CanonicalTitle: ident.Title,
		Year:           ident.Year,
		Season:         ident.Season,
		Episode:        ident.Episode,
		ExternalIDs:    raw.ExternalIDs,
		Images:         raw.Images,
		DurationMs:     raw.DurationMs,
		Rating:         raw.Rating,
		ResolveState:   models.ResolveUnresolved,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// mergeRaw overwrites every field present in raw. Enrichment state and timestamps
// are left alone. Returns whether anything changed.
func mergeRaw(m *models.CanonicalMedia, ident identity.Identity, raw models.RawMediaMetadata) bool {
	changed := false
	if ident.Title != "" && ident.Title != m.CanonicalTitle {
		m.CanonicalTitle = ident.Title
		changed = true
	}
	changed = overwrite(&m.Year, ident.Year) || changed

	changed = overwriteExternalIDs(&m.ExternalIDs, raw.ExternalIDs) || changed
	changed = overwriteImages(&m.Images, raw.Images) || changed

	changed = overwrite(&m.DurationMs, raw.DurationMs) || changed
	changed = overwrite(&m.Rating, raw.Rating) || changed
	return changed
}

func overwriteExternalIDs(dst *models.ExternalIDs, src models.ExternalIDs) bool {
	changed := overwrite(&dst.TmdbRef, src.TmdbRef)
	changed = overwrite(&dst.ImdbID, src.ImdbID) || changed
	changed = overwrite(&dst.TvdbID, src.TvdbID) || changed
	return changed
}

func overwriteImages(dst *models.Images, src models.Images) bool {
	changed := overwrite(&dst.Poster, src.Poster)
	changed = overwrite(&dst.Backdrop, src.Backdrop) || changed
	changed = overwrite(&dst.Thumbnail, src.Thumbnail) || changed
	return changed
}

// overwrite replaces *dst with src when src is present. A nil src never clears dst.
func overwrite[T comparable](dst **T, src *T) bool {
	if src == nil {
		return false
	}
	if *dst != nil && **dst == *src {
		return false
	}
	v := *src
	*dst = &v
	return true
}
