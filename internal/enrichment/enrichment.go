// Package enrichment resolves canonical media against an external metadata catalog.
//
// Each entity moves through unresolved, pending, and then resolved or failed. Failed
// entities sit out an escalating cooldown before they are selected again. Two paths
// exist: entities that already carry a catalog reference are refreshed by id, the rest
// are searched by title and the best candidate is accepted only above a confidence
// threshold.
package enrichment

import (
	"context"
	"errors"
	"time"

	"github.com/amaumene/catalogarr/internal/models"
)

var (
	// ErrEnrichmentDisabled is returned when no catalog credential is configured
	ErrEnrichmentDisabled = errors.New("enrichment is disabled")
	// ErrNoConfidentMatch is recorded when a search yields no acceptable candidate
	ErrNoConfidentMatch = errors.New("no confident match")
)

// Query is the normalized description of an entity sent to the catalog
type Query struct {
	Kind        models.MediaKind
	Title       string
	Year        *int
	Season      *int
	Episode     *int
	ExternalIDs models.ExternalIDs
}

// Candidate is one search hit
type Candidate struct {
	Title    string
	Year     *int
	Metadata models.EnrichedMetadata
}

// Client is the external metadata catalog
type Client interface {
	// Details fetches metadata for the catalog reference carried by q
	Details(ctx context.Context, q Query) (models.EnrichedMetadata, error)
	// Search returns catalog candidates for q's title
	Search(ctx context.Context, q Query) ([]Candidate, error)
}

// Outcome is the result of one enrichment attempt
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"   // new fields were written
	OutcomeUnchanged Outcome = "unchanged" // catalog confirmed what is stored
	OutcomeFailed    Outcome = "failed"    // recorded with a cooldown
	OutcomeSkipped   Outcome = "skipped"   // excluded, disabled or claimed elsewhere, not an attempt
)

// Config tunes the orchestrator
type Config struct {
	Enabled        bool
	Cooldown       time.Duration
	MaxCooldown    time.Duration
	Concurrency    int
	BatchSize      int
	MatchThreshold float64
	RefreshAfter   time.Duration // zero disables refreshing resolved entities
	PendingTimeout time.Duration
}

// DefaultConfig returns the orchestrator defaults
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		Cooldown:       6 * time.Hour,
		MaxCooldown:    7 * 24 * time.Hour,
		Concurrency:    3,
		BatchSize:      50,
		MatchThreshold: 0.8,
		RefreshAfter:   30 * 24 * time.Hour,
		PendingTimeout: 30 * time.Minute,
	}
}

// Summary reports one enrichment cycle
type Summary struct {
	Disabled   bool          `json:"disabled"`
	Busy       bool          `json:"busy"`
	Candidates int           `json:"candidates"`
	Applied    int           `json:"applied"`
	Unchanged  int           `json:"unchanged"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"duration"`
}

func (s *Summary) add(o Outcome) {
	switch o {
	case OutcomeApplied:
		s.Applied++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeFailed:
		s.Failed++
	case OutcomeSkipped:
		s.Skipped++
	}
}

func queryFor(m *models.CanonicalMedia) Query {
	return Query{
		Kind:        m.Kind,
		Title:       m.CanonicalTitle,
		Year:        m.Year,
		Season:      m.Season,
		Episode:     m.Episode,
		ExternalIDs: m.ExternalIDs,
	}
}
