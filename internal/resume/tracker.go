// Package resume tracks playback positions on behalf of the player.
//
// The player never sees an error from this package: a failed save is logged and counted,
// and a failed lookup reads as "no resume position".
package resume

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/amaumene/catalogarr/internal/live"
	"github.com/amaumene/catalogarr/internal/metrics"
	"github.com/amaumene/catalogarr/internal/models"
	"github.com/amaumene/catalogarr/internal/store"
)

// DefaultProfile is used when a caller does not name a profile
const DefaultProfile = "default"

// PlaybackContext describes what is being played
type PlaybackContext struct {
	CanonicalKey string            `json:"canonical_key"`
	ProfileID    string            `json:"profile_id,omitempty"`
	Source       *models.SourceRef `json:"source,omitempty"`
	Title        string            `json:"title,omitempty"`
}

// Entry is a resume mark joined with the title of its canonical record
type Entry struct {
	Mark   models.ResumeMark `json:"mark"`
	Title  string            `json:"title"`
	Kind   models.MediaKind  `json:"kind"`
	Images models.Images     `json:"images"`
}

// Tracker is the playback-facing resume API
type Tracker struct {
	store          *store.Store
	observer       *live.Observer
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	defaultProfile string
}

// NewTracker creates a tracker. An empty defaultProfile selects DefaultProfile.
func NewTracker(st *store.Store, observer *live.Observer, m *metrics.Metrics, logger zerolog.Logger, defaultProfile string) *Tracker {
	if strings.TrimSpace(defaultProfile) == "" {
		defaultProfile = DefaultProfile
	}
	return &Tracker{
		store:          st,
		observer:       observer,
		metrics:        m,
		logger:         logger.With().Str("component", "resume").Logger(),
		defaultProfile: defaultProfile,
	}
}

func (t *Tracker) profile(profileID string) string {
	if p := strings.TrimSpace(profileID); p != "" {
		return p
	}
	return t.defaultProfile
}

// Save records the playback position. It never fails from the caller's point of view;
// the stored mark is returned, or nil when the save did not go through.
func (t *Tracker) Save(ctx context.Context, pc PlaybackContext, positionMs, durationMs int64) *models.ResumeMark {
	profileID := t.profile(pc.ProfileID)
	mark, err := t.store.SetResume(ctx, pc.CanonicalKey, profileID, positionMs, durationMs, pc.Source)
	if err != nil {
		t.metrics.ResumeSaves.WithLabelValues("failed").Inc()
		t.logger.Warn().
			Err(err).
			Str("canonical_key", pc.CanonicalKey).
			Str("profile_id", profileID).
			Str("title", pc.Title).
			Int64("position_ms", positionMs).
			Msg("Failed to save resume position")
		return nil
	}

	t.metrics.ResumeSaves.WithLabelValues("saved").Inc()
	t.logger.Debug().
		Str("canonical_key", pc.CanonicalKey).
		Str("profile_id", profileID).
		Int64("position_ms", mark.PositionMs).
		Float64("percent", mark.PositionPercent).
		Bool("completed", mark.IsCompleted).
		Msg("Saved resume position")
	return mark
}

// Get returns the resume mark for key, or nil when there is none or it could not be read.
// Callers start from zero in both cases.
func (t *Tracker) Get(ctx context.Context, key, profileID string) *models.ResumeMark {
	mark, err := t.store.GetResume(ctx, key, t.profile(profileID))
	if err != nil {
		t.logger.Warn().Err(err).Str("canonical_key", key).Msg("Failed to read resume position")
		return nil
	}
	return mark
}

// GetAll returns the unfinished resume entries of profileID with their titles
func (t *Tracker) GetAll(ctx context.Context, profileID string, limit int) ([]Entry, error) {
	rows, err := t.store.QueryContinueWatching(ctx, t.profile(profileID), limit)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			Mark:   row.Mark,
			Title:  row.Media.CanonicalTitle,
			Kind:   row.Media.Kind,
			Images: row.Media.Images,
		})
	}
	return entries, nil
}

// Clear resets the resume position of key
func (t *Tracker) Clear(ctx context.Context, key, profileID string) error {
	profileID = t.profile(profileID)
	if err := t.store.ClearResume(ctx, key, profileID); err != nil {
		return err
	}
	t.logger.Info().Str("canonical_key", key).Str("profile_id", profileID).Msg("Cleared resume position")
	return nil
}

// Observe streams the resume mark of key, nil while there is none
func (t *Tracker) Observe(ctx context.Context, key, profileID string) <-chan live.Update[*models.ResumeMark] {
	profileID = t.profile(profileID)
	return live.Optional(ctx, t.observer, "resume", []string{models.TableResumeMarks}, func(ctx context.Context) (*models.ResumeMark, error) {
		return t.store.GetResume(ctx, key, profileID)
	})
}
