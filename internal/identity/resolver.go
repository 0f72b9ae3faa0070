// Package identity maps raw media records from any source onto a canonical key.
//
// Keys are readable slugs:
//
//	movie with year      the-matrix:1999
//	movie without year   the-matrix
//	episode              breaking-bad:s01e02
//
// Movies without a year key on the title alone and may therefore merge two distinct
// films that share a title. Enrichment does not re-key such records.
package identity

import (
	"fmt"
	"strings"

	"github.com/amaumene/catalogarr/internal/models"
)

const (
	minYear = 1870
	maxYear = 2100
)

// Identity is the canonical id plus the identity-derived display fields
type Identity struct {
	ID      models.CanonicalMediaID
	Title   string
	Year    *int
	Season  *int
	Episode *int
}

// Resolve maps a raw record onto its canonical id. Pure, no I/O.
func Resolve(raw models.RawMediaMetadata) models.CanonicalMediaID {
	return Identify(raw).ID
}

// Identify resolves the canonical id and the normalized display fields of a raw record
func Identify(raw models.RawMediaMetadata) Identity {
	knownYear := 0
	if raw.Year != nil && validYear(*raw.Year) {
		knownYear = *raw.Year
	}

	nt := NormalizeTitle(raw.Title, knownYear)
	slug := nt.Slug
	if slug == "" {
		slug = fallbackSlug(raw.Title)
	}
	display := nt.Display
	if display == "" {
		display = strings.TrimSpace(raw.Title)
	}

	year := knownYear
	if year == 0 && validYear(nt.Year) {
		year = nt.Year
	}

	id := Identity{Title: display}
	if year > 0 {
		y := year
		id.Year = &y
	}

	switch {
	case raw.Season == nil && raw.Episode == nil:
		id.ID = models.CanonicalMediaID{Kind: models.MediaKindMovie, Key: movieKey(slug, year)}
	case validSeason(raw.Season) && validEpisode(raw.Episode):
		season, episode := *raw.Season, *raw.Episode
		id.Season = &season
		id.Episode = &episode
		id.ID = models.CanonicalMediaID{
			Kind: models.MediaKindEpisode,
			Key:  fmt.Sprintf("%s:s%02de%02d", slug, season, episode),
		}
	default:
		// Malformed season/episode: treat as a movie keyed on the title only
		id.ID = models.CanonicalMediaID{Kind: models.MediaKindMovie, Key: slug}
	}

	return id
}

func movieKey(slug string, year int) string {
	if year == 0 {
		return slug
	}
	return fmt.Sprintf("%s:%d", slug, year)
}

// fallbackSlug is used when every token of the title was release noise
func fallbackSlug(title string) string {
	f := newFolder()
	fields := strings.Fields(f.fold(strings.TrimSpace(title)))
	if len(fields) == 0 {
		return "untitled"
	}
	slug := strings.Join(fields, "-")
	return strings.ReplaceAll(slug, ":", "-")
}

func validYear(year int) bool {
	return year >= minYear && year <= maxYear
}

func validSeason(season *int) bool {
	return season != nil && *season >= 0 && *season <= 999
}

func validEpisode(episode *int) bool {
	return episode != nil && *episode >= 1 && *episode <= 9999
}
