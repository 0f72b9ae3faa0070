package enrichment

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/amaumene/catalogarr/internal/identity"
	"github.com/amaumene/catalogarr/internal/models"
)

const (
	titleWeight = 0.8
	yearWeight  = 0.2

	// Two accepted candidates closer than this are indistinguishable
	ambiguityMargin = 0.02
)

// MatchResult is the outcome of scoring search candidates
type MatchResult struct {
	Accepted   *models.EnrichedMetadata
	Confidence float64
	Title      string
}

// SearchAndScore searches the catalog for q and accepts the best candidate when it
// scores at least threshold and no other candidate scores just as well.
func SearchAndScore(ctx context.Context, client Client, q Query, threshold float64) (MatchResult, error) {
	candidates, err := client.Search(ctx, q)
	if err != nil {
		return MatchResult{}, err
	}
	return pickCandidate(q, candidates, threshold), nil
}

type scored struct {
	candidate Candidate
	score     float64
}

func pickCandidate(q Query, candidates []Candidate, threshold float64) MatchResult {
	if len(candidates) == 0 {
		return MatchResult{}
	}

	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, scored{candidate: c, score: Score(q, c)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	best := ranked[0]
	result := MatchResult{Confidence: best.score, Title: best.candidate.Title}
	if best.score < threshold {
		return result
	}
	if len(ranked) > 1 && best.score-ranked[1].score < ambiguityMargin && !sameRef(best.candidate, ranked[1].candidate) {
		return result
	}

	accepted := best.candidate.Metadata
	return MatchResult{Accepted: &accepted, Confidence: best.score, Title: best.candidate.Title}
}

// Score rates how well a candidate matches q, from 0 to 1
func Score(q Query, c Candidate) float64 {
	a, b := scoringTitle(q.Title), scoringTitle(c.Title)
	titleScore := similarity(a, b)

	yearScore := 0.5
	yearMismatch := false
	if q.Kind != models.MediaKindEpisode && q.Year != nil && c.Year != nil {
		switch diff := *q.Year - *c.Year; {
		case diff == 0:
			yearScore = 1
		case diff == 1 || diff == -1:
			yearScore = 0.5
		default:
			yearScore = 0
			yearMismatch = true
		}
	}

	score := titleWeight*titleScore + yearWeight*yearScore
	if yearMismatch {
		score *= 0.5
	}
	if a == b && yearScore == 1 {
		score = 1
	}
	return score
}

func scoringTitle(title string) string {
	return strings.ReplaceAll(identity.NormalizeTitle(title, 0).Slug, "-", " ")
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func sameRef(a, b Candidate) bool {
	ra, rb := a.Metadata.ExternalIDs.TmdbRef, b.Metadata.ExternalIDs.TmdbRef
	return ra != nil && rb != nil && *ra == *rb
}
