package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/amaumene/catalogarr/internal/enrichment"
	"github.com/amaumene/catalogarr/internal/models"
)

var _ enrichment.Client = (*Client)(nil)

type externalIDs struct {
	ImdbID string `json:"imdb_id"`
	TvdbID int    `json:"tvdb_id"`
}

type movieResult struct {
	ID           int          `json:"id"`
	Title        string       `json:"title"`
	ReleaseDate  string       `json:"release_date"`
	PosterPath   string       `json:"poster_path"`
	BackdropPath string       `json:"backdrop_path"`
	ImdbID       string       `json:"imdb_id"`
	ExternalIDs  *externalIDs `json:"external_ids,omitempty"`
}

type showResult struct {
	ID           int          `json:"id"`
	Name         string       `json:"name"`
	FirstAirDate string       `json:"first_air_date"`
	PosterPath   string       `json:"poster_path"`
	BackdropPath string       `json:"backdrop_path"`
	ExternalIDs  *externalIDs `json:"external_ids,omitempty"`
}

type episodeResult struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	AirDate   string `json:"air_date"`
	StillPath string `json:"still_path"`
}

type searchResponse[T any] struct {
	Results []T `json:"results"`
}

// Ref is a parsed catalog reference: "movie:603" or "tv:1399:1:2"
type Ref struct {
	Kind    models.MediaKind
	ID      int
	Season  int
	Episode int
}

// String formats the reference the way it is stored
func (r Ref) String() string {
	if r.Kind == models.MediaKindEpisode {
		return fmt.Sprintf("tv:%d:%d:%d", r.ID, r.Season, r.Episode)
	}
	return fmt.Sprintf("movie:%d", r.ID)
}

// ParseRef parses a stored reference. A bare numeric id is read according to q's kind,
// taking season and episode from q for episodes.
func ParseRef(ref string, q enrichment.Query) (Ref, error) {
	parts := strings.Split(strings.TrimSpace(ref), ":")
	nums := func(values []string) ([]int, error) {
		out := make([]int, len(values))
		for i, v := range values {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid catalog reference %q", ref)
			}
			out[i] = n
		}
		return out, nil
	}

	switch {
	case len(parts) == 2 && parts[0] == "movie":
		n, err := nums(parts[1:])
		if err != nil {
			return Ref{}, err
		}
		return Ref{Kind: models.MediaKindMovie, ID: n[0]}, nil
	case len(parts) == 4 && parts[0] == "tv":
		n, err := nums(parts[1:])
		if err != nil {
			return Ref{}, err
		}
		return Ref{Kind: models.MediaKindEpisode, ID: n[0], Season: n[1], Episode: n[2]}, nil
	case len(parts) == 1:
		n, err := nums(parts)
		if err != nil {
			return Ref{}, err
		}
		if q.Kind != models.MediaKindEpisode {
			return Ref{Kind: models.MediaKindMovie, ID: n[0]}, nil
		}
		if q.Season == nil || q.Episode == nil {
			return Ref{}, fmt.Errorf("catalog reference %q needs season and episode", ref)
		}
		return Ref{Kind: models.MediaKindEpisode, ID: n[0], Season: *q.Season, Episode: *q.Episode}, nil
	}
	return Ref{}, fmt.Errorf("invalid catalog reference %q", ref)
}

// Details fetches metadata for the reference carried by q
func (c *Client) Details(ctx context.Context, q enrichment.Query) (models.EnrichedMetadata, error) {
	if q.ExternalIDs.TmdbRef == nil {
		return models.EnrichedMetadata{}, fmt.Errorf("query carries no catalog reference")
	}
	ref, err := ParseRef(*q.ExternalIDs.TmdbRef, q)
	if err != nil {
		return models.EnrichedMetadata{}, err
	}

	c.logger.Debug().Str("ref", ref.String()).Msg("Fetching TMDB details")

	params := url.Values{}
	params.Set("append_to_response", "external_ids")

	if ref.Kind == models.MediaKindMovie {
		var movie movieResult
		if err := c.get(ctx, fmt.Sprintf("/movie/%d", ref.ID), params, &movie); err != nil {
			return models.EnrichedMetadata{}, fmt.Errorf("movie %d: %w", ref.ID, err)
		}
		return c.movieMetadata(movie), nil
	}

	var show showResult
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", ref.ID), params, &show); err != nil {
		return models.EnrichedMetadata{}, fmt.Errorf("show %d: %w", ref.ID, err)
	}
	var episode episodeResult
	path := fmt.Sprintf("/tv/%d/season/%d/episode/%d", ref.ID, ref.Season, ref.Episode)
	if err := c.get(ctx, path, nil, &episode); err != nil {
		return models.EnrichedMetadata{}, fmt.Errorf("episode %s: %w", ref, err)
	}

	meta := c.showMetadata(show, ref.Season, ref.Episode)
	meta.Images.Thumbnail = c.imageURL(stillSize, episode.StillPath)
	return meta, nil
}

// Search returns candidates for q's title. Episodes are searched by show title and every
// candidate refers to the queried season and episode of that show.
func (c *Client) Search(ctx context.Context, q enrichment.Query) ([]enrichment.Candidate, error) {
	if strings.TrimSpace(q.Title) == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", q.Title)
	params.Set("include_adult", "false")

	c.logger.Debug().Str("title", q.Title).Str("kind", string(q.Kind)).Msg("Searching TMDB")

	if q.Kind == models.MediaKindEpisode {
		if q.Season == nil || q.Episode == nil {
			return nil, fmt.Errorf("episode search needs season and episode")
		}
		if q.Year != nil {
			params.Set("first_air_date_year", strconv.Itoa(*q.Year))
		}
		var resp searchResponse[showResult]
		if err := c.get(ctx, "/search/tv", params, &resp); err != nil {
			return nil, fmt.Errorf("search tv: %w", err)
		}
		candidates := make([]enrichment.Candidate, 0, len(resp.Results))
		for _, show := range resp.Results {
			meta := c.showMetadata(show, *q.Season, *q.Episode)
			candidates = append(candidates, enrichment.Candidate{Title: show.Name, Year: yearOf(show.FirstAirDate), Metadata: meta})
		}
		return candidates, nil
	}

	if q.Year != nil {
		params.Set("year", strconv.Itoa(*q.Year))
	}
	var resp searchResponse[movieResult]
	if err := c.get(ctx, "/search/movie", params, &resp); err != nil {
		return nil, fmt.Errorf("search movie: %w", err)
	}
	candidates := make([]enrichment.Candidate, 0, len(resp.Results))
	for _, movie := range resp.Results {
		candidates = append(candidates, enrichment.Candidate{Title: movie.Title, Year: yearOf(movie.ReleaseDate), Metadata: c.movieMetadata(movie)})
	}
	return candidates, nil
}

func (c *Client) movieMetadata(m movieResult) models.EnrichedMetadata {
	ref := Ref{Kind: models.MediaKindMovie, ID: m.ID}.String()
	meta := models.EnrichedMetadata{
		ExternalIDs: models.ExternalIDs{TmdbRef: &ref, ImdbID: optional(m.ImdbID)},
		Images: models.Images{
			Poster:   c.imageURL(posterSize, m.PosterPath),
			Backdrop: c.imageURL(backdropSize, m.BackdropPath),
		},
		Year: yearOf(m.ReleaseDate),
	}
	if m.ExternalIDs != nil {
		if meta.ExternalIDs.ImdbID == nil {
			meta.ExternalIDs.ImdbID = optional(m.ExternalIDs.ImdbID)
		}
		if m.ExternalIDs.TvdbID > 0 {
			meta.ExternalIDs.TvdbID = optional(strconv.Itoa(m.ExternalIDs.TvdbID))
		}
	}
	return meta
}

func (c *Client) showMetadata(s showResult, season, episode int) models.EnrichedMetadata {
	ref := Ref{Kind: models.MediaKindEpisode, ID: s.ID, Season: season, Episode: episode}.String()
	meta := models.EnrichedMetadata{
		ExternalIDs: models.ExternalIDs{TmdbRef: &ref},
		Images: models.Images{
			Poster:   c.imageURL(posterSize, s.PosterPath),
			Backdrop: c.imageURL(backdropSize, s.BackdropPath),
		},
		Year: yearOf(s.FirstAirDate),
	}
	// Show level imdb ids do not identify an episode
	if s.ExternalIDs != nil {
		if s.ExternalIDs.TvdbID > 0 {
			meta.ExternalIDs.TvdbID = optional(strconv.Itoa(s.ExternalIDs.TvdbID))
		}
	}
	return meta
}
