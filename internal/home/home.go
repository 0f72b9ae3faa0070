// Package home builds the continue watching and recently added shelves.
package home

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/amaumene/catalogarr/internal/live"
	"github.com/amaumene/catalogarr/internal/models"
	"github.com/amaumene/catalogarr/internal/store"
)

// Screen is where a home item navigates to
type Screen string

const (
	ScreenPlayer  Screen = "player"  // item has a playable source
	ScreenDetails Screen = "details" // no playable source is known
)

// NavigationTarget tells the UI what opening an item does
type NavigationTarget struct {
	Screen       Screen            `json:"screen"`
	CanonicalKey string            `json:"canonical_key"`
	SourceType   models.SourceType `json:"source_type"`
	SourceID     string            `json:"source_id,omitempty"`
	StartMs      int64             `json:"start_ms"`
}

// HomeItem is one tile of a home shelf
type HomeItem struct {
	ID              models.CanonicalMediaID `json:"id"`
	Title           string                  `json:"title"`
	Kind            models.MediaKind        `json:"kind"`
	Year            *int                    `json:"year,omitempty"`
	Season          *int                    `json:"season,omitempty"`
	Episode         *int                    `json:"episode,omitempty"`
	Rating          *float64                `json:"rating,omitempty"`
	Images          models.Images           `json:"images"`
	Source          models.SourceType       `json:"source"`
	PositionMs      int64                   `json:"position_ms"`
	DurationMs      int64                   `json:"duration_ms"`
	PositionPercent float64                 `json:"position_percent"`
	IsNew           bool                    `json:"is_new"`
	Navigation      NavigationTarget        `json:"navigation"`
}

// Config bounds the shelves
type Config struct {
	ContinueLimit int
	RecentLimit   int
	NewWindow     time.Duration
}

// DefaultConfig returns the shelf sizes used when nothing is configured
func DefaultConfig() Config {
	return Config{ContinueLimit: 30, RecentLimit: 60, NewWindow: 7 * 24 * time.Hour}
}

// Service answers the home shelf queries
type Service struct {
	store    *store.Store
	observer *live.Observer
	cfg      Config
	logger   zerolog.Logger
}

// NewService creates the home service
func NewService(st *store.Store, observer *live.Observer, cfg Config, logger zerolog.Logger) *Service {
	def := DefaultConfig()
	if cfg.ContinueLimit <= 0 {
		cfg.ContinueLimit = def.ContinueLimit
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = def.RecentLimit
	}
	if cfg.NewWindow <= 0 {
		cfg.NewWindow = def.NewWindow
	}
	return &Service{
		store:    st,
		observer: observer,
		cfg:      cfg,
		logger:   logger.With().Str("component", "home").Logger(),
	}
}

// ContinueWatching returns the unfinished items of profileID, most recently watched first.
// limit is capped at the configured shelf size; zero or less selects it.
func (s *Service) ContinueWatching(ctx context.Context, profileID string, limit int) ([]HomeItem, error) {
	entries, err := s.store.QueryContinueWatching(ctx, profileID, bound(limit, s.cfg.ContinueLimit))
	if err != nil {
		return nil, err
	}

	now := s.store.Now()
	items := make([]HomeItem, 0, len(entries))
	for i := range entries {
		mark := &entries[i].Mark
		item := s.toItem(&entries[i].Media, now)
		item.PositionMs = mark.PositionMs
		item.DurationMs = mark.DurationMs
		item.PositionPercent = mark.PositionPercent
		item.Navigation.StartMs = mark.PositionMs
		items = append(items, item)
	}
	return items, nil
}

// RecentlyAdded returns the newest items, newest first
func (s *Service) RecentlyAdded(ctx context.Context, limit int) ([]HomeItem, error) {
	media, err := s.store.QueryRecentlyAdded(ctx, bound(limit, s.cfg.RecentLimit))
	if err != nil {
		return nil, err
	}

	now := s.store.Now()
	items := make([]HomeItem, 0, len(media))
	for i := range media {
		items = append(items, s.toItem(&media[i], now))
	}
	return items, nil
}

// ObserveContinueWatching streams the continue watching shelf of profileID
func (s *Service) ObserveContinueWatching(ctx context.Context, profileID string) <-chan live.Update[[]HomeItem] {
	tables := []string{models.TableResumeMarks, models.TableCanonicalMedia, models.TableMediaSourceRefs}
	return live.List(ctx, s.observer, "continue_watching", tables, func(ctx context.Context) ([]HomeItem, error) {
		return s.ContinueWatching(ctx, profileID, 0)
	})
}

// ObserveRecentlyAdded streams the recently added shelf
func (s *Service) ObserveRecentlyAdded(ctx context.Context) <-chan live.Update[[]HomeItem] {
	tables := []string{models.TableCanonicalMedia, models.TableMediaSourceRefs}
	return live.List(ctx, s.observer, "recently_added", tables, func(ctx context.Context) ([]HomeItem, error) {
		return s.RecentlyAdded(ctx, 0)
	})
}

func (s *Service) toItem(m *models.CanonicalMedia, now time.Time) HomeItem {
	source, ref := SelectSource(m.Sources)

	nav := NavigationTarget{
		Screen:       ScreenDetails,
		CanonicalKey: m.CanonicalKey,
		SourceType:   source,
	}
	if ref != nil {
		nav.Screen = ScreenPlayer
		nav.SourceID = ref.SourceID
	}

	return HomeItem{
		ID:         m.MediaID(),
		Title:      m.CanonicalTitle,
		Kind:       m.Kind,
		Year:       m.Year,
		Season:     m.Season,
		Episode:    m.Episode,
		Rating:     m.Rating,
		Images:     m.Images,
		Source:     source,
		IsNew:      !m.CreatedAt.IsZero() && now.Sub(m.CreatedAt) <= s.cfg.NewWindow,
		Navigation: nav,
	}
}

func bound(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}
