package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/catalogarr/internal/models"
)

func candidate(title string, year int, ref string) Candidate {
	c := Candidate{Title: title, Metadata: models.EnrichedMetadata{ExternalIDs: models.ExternalIDs{TmdbRef: strPtr(ref)}}}
	if year > 0 {
		c.Year = intPtr(year)
	}
	return c
}

func TestScore(t *testing.T) {
	movie := Query{Kind: models.MediaKindMovie, Title: "The Matrix", Year: intPtr(1999)}

	assert.Equal(t, 1.0, Score(movie, candidate("The Matrix", 1999, "movie:603")))
	assert.InDelta(t, 0.9, Score(movie, candidate("the matrix", 1998, "x")), 0.001)
	assert.Less(t, Score(movie, candidate("The Matrix Reloaded", 2003, "x")), 0.5)
	assert.InDelta(t, 0.4, Score(movie, candidate("The Matrix", 2021, "x")), 0.001)

	yearless := Query{Kind: models.MediaKindMovie, Title: "The Matrix"}
	assert.InDelta(t, 0.9, Score(yearless, candidate("The Matrix", 1999, "x")), 0.001)

	episode := Query{Kind: models.MediaKindEpisode, Title: "Breaking Bad", Year: intPtr(2010), Season: intPtr(3), Episode: intPtr(1)}
	assert.InDelta(t, 0.9, Score(episode, candidate("Breaking Bad", 2008, "tv:1396:3:1")), 0.001)
}

func TestPickCandidate(t *testing.T) {
	q := Query{Kind: models.MediaKindMovie, Title: "Heat", Year: intPtr(1995)}

	result := pickCandidate(q, []Candidate{candidate("Heat", 1986, "movie:1"), candidate("Heat", 1995, "movie:949")}, 0.8)
	require.NotNil(t, result.Accepted)
	assert.Equal(t, "movie:949", *result.Accepted.ExternalIDs.TmdbRef)
	assert.Equal(t, 1.0, result.Confidence)

	result = pickCandidate(q, []Candidate{candidate("Heist", 2001, "movie:2")}, 0.8)
	assert.Nil(t, result.Accepted)
	assert.Greater(t, result.Confidence, 0.0)

	result = pickCandidate(q, nil, 0.8)
	assert.Nil(t, result.Accepted)
}

func TestPickCandidateRejectsAmbiguousYearlessMatch(t *testing.T) {
	q := Query{Kind: models.MediaKindMovie, Title: "Heat"}
	candidates := []Candidate{candidate("Heat", 1995, "movie:949"), candidate("Heat", 1986, "movie:1")}

	result := pickCandidate(q, candidates, 0.8)
	assert.Nil(t, result.Accepted)
	assert.InDelta(t, 0.9, result.Confidence, 0.001)

	// The same catalog entry listed twice is not ambiguous
	result = pickCandidate(q, []Candidate{candidate("Heat", 1995, "movie:949"), candidate("Heat", 1995, "movie:949")}, 0.8)
	assert.NotNil(t, result.Accepted)
}
