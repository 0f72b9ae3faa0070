package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/catalogarr/internal/models"
)

func intPtr(v int) *int { return &v }

func TestResolveMovieKeys(t *testing.T) {
	tests := []struct {
		name string
		raw  models.RawMediaMetadata
		want string
	}{
		{"plain title with year", models.RawMediaMetadata{Title: "The Matrix", Year: intPtr(1999)}, "the-matrix:1999"},
		{"release name", models.RawMediaMetadata{Title: "The.Matrix.1999.1080p.BluRay.x264-GRP"}, "the-matrix:1999"},
		{"bracketed year", models.RawMediaMetadata{Title: "THE MATRIX (1999)"}, "the-matrix:1999"},
		{"trailing year repeats known year", models.RawMediaMetadata{Title: "Movie X 2020", Year: intPtr(2020)}, "movie-x:2020"},
		{"numeric title keeps its number", models.RawMediaMetadata{Title: "Blade Runner 2049", Year: intPtr(2017)}, "blade-runner-2049:2017"},
		{"single year token is the title", models.RawMediaMetadata{Title: "1917", Year: intPtr(2019)}, "1917:2019"},
		{"diacritics fold", models.RawMediaMetadata{Title: "Amélie", Year: intPtr(2001)}, "amelie:2001"},
		{"group tag dropped", models.RawMediaMetadata{Title: "[YTS] Heat 1995 720p WEB-DL"}, "heat:1995"},
		{"no year keys on title", models.RawMediaMetadata{Title: "Heat"}, "heat"},
		{"invalid year ignored", models.RawMediaMetadata{Title: "Heat", Year: intPtr(12)}, "heat"},
		{"only noise", models.RawMediaMetadata{Title: "   "}, "untitled"},
		{"tag word inside a title", models.RawMediaMetadata{Title: "The Proper Twenty", Year: intPtr(2019)}, "the-proper-twenty:2019"},
		{"tag word inside a release name", models.RawMediaMetadata{Title: "The.Multi.Verse.2019.1080p"}, "the-multi-verse:2019"},
		{"tag word before year", models.RawMediaMetadata{Title: "Movie.X.PROPER.2020.1080p"}, "movie-x:2020"},
		{"tag word before noise", models.RawMediaMetadata{Title: "Movie.X.2020.REPACK.720p"}, "movie-x:2020"},
		{"tag word at the end", models.RawMediaMetadata{Title: "Movie X Dubbed", Year: intPtr(2020)}, "movie-x:2020"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := Resolve(tt.raw)
			assert.Equal(t, models.MediaKindMovie, id.Kind)
			assert.Equal(t, tt.want, id.Key)
		})
	}
}

func TestResolveEpisodeKeys(t *testing.T) {
	id := Resolve(models.RawMediaMetadata{Title: "Breaking Bad", Season: intPtr(1), Episode: intPtr(2)})
	assert.Equal(t, models.CanonicalMediaID{Kind: models.MediaKindEpisode, Key: "breaking-bad:s01e02"}, id)

	release := Resolve(models.RawMediaMetadata{Title: "Breaking.Bad.S01E02.720p.HDTV", Season: intPtr(1), Episode: intPtr(2)})
	assert.Equal(t, id, release)

	withYear := Resolve(models.RawMediaMetadata{Title: "Breaking Bad", Year: intPtr(2008), Season: intPtr(1), Episode: intPtr(2)})
	assert.Equal(t, id, withYear, "year does not take part in episode keys")
}

func TestResolveMalformedEpisodeFallsBackToMovie(t *testing.T) {
	tests := []struct {
		name string
		raw  models.RawMediaMetadata
	}{
		{"season only", models.RawMediaMetadata{Title: "Dark", Year: intPtr(2017), Season: intPtr(1)}},
		{"episode only", models.RawMediaMetadata{Title: "Dark", Episode: intPtr(3)}},
		{"episode zero", models.RawMediaMetadata{Title: "Dark", Season: intPtr(1), Episode: intPtr(0)}},
		{"negative season", models.RawMediaMetadata{Title: "Dark", Season: intPtr(-1), Episode: intPtr(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ident := Identify(tt.raw)
			assert.Equal(t, models.CanonicalMediaID{Kind: models.MediaKindMovie, Key: "dark"}, ident.ID)
			assert.Nil(t, ident.Season)
			assert.Nil(t, ident.Episode)
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	raws := []models.RawMediaMetadata{
		{Title: "Movie X", Year: intPtr(2020)},
		{Title: "movie x", Year: intPtr(2020)},
		{Title: "Movie.X.2020.2160p.WEBRip.x265"},
		{Title: "  MOVIE   X  ", Year: intPtr(2020)},
	}
	for _, raw := range raws {
		assert.Equal(t, "movie-x:2020", Resolve(raw).Key, raw.Title)
	}
}

func TestIdentifyDisplayFields(t *testing.T) {
	ident := Identify(models.RawMediaMetadata{Title: "The.Matrix.1999.1080p.BluRay.x264"})
	assert.Equal(t, "The Matrix", ident.Title)
	require.NotNil(t, ident.Year)
	assert.Equal(t, 1999, *ident.Year)
}

func TestNormalizeTitle(t *testing.T) {
	nt := NormalizeTitle("Don’t Look Up (2021) [1080p]", 0)
	assert.Equal(t, "dont-look-up", nt.Slug)
	assert.Equal(t, "Don't Look Up", nt.Display)
	assert.Equal(t, 2021, nt.Year)

	nt = NormalizeTitle("Heat 1995", 1996)
	assert.Equal(t, "heat-1995", nt.Slug, "a differing trailing year stays part of the name")
	assert.Zero(t, nt.Year)
}
