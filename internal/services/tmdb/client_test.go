package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/catalogarr/internal/config"
	"github.com/amaumene/catalogarr/internal/enrichment"
	"github.com/amaumene/catalogarr/internal/models"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := &config.Config{
		TMDBAPIKey:       "test-key",
		TMDBBaseURL:      server.URL,
		TMDBImageBaseURL: "https://img.test/t/p",
		TMDBLanguage:     "en-US",
		TMDBCacheTTL:     time.Hour,
		TMDBRateLimit:    1000,
		TMDBTimeout:      5 * time.Second,
	}
	client, err := NewClient(cfg, zerolog.Nop())
	require.NoError(t, err)
	client.retryWait = time.Millisecond
	return client, &hits
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(&config.Config{TMDBBaseURL: "http://x"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestDetailsMovie(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/603", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "en-US", r.URL.Query().Get("language"))
		assert.Equal(t, "external_ids", r.URL.Query().Get("append_to_response"))
		w.Write([]byte(`{"id":603,"title":"The Matrix","release_date":"1999-03-30",
			"poster_path":"/p.jpg","backdrop_path":"/b.jpg","imdb_id":"tt0133093",
			"external_ids":{"imdb_id":"tt0133093","tvdb_id":0}}`))
	})

	meta, err := client.Details(context.Background(), enrichment.Query{
		Kind:        models.MediaKindMovie,
		Title:       "the matrix",
		ExternalIDs: models.ExternalIDs{TmdbRef: strPtr("movie:603")},
	})
	require.NoError(t, err)
	assert.Equal(t, "movie:603", *meta.ExternalIDs.TmdbRef)
	assert.Equal(t, "tt0133093", *meta.ExternalIDs.ImdbID)
	assert.Nil(t, meta.ExternalIDs.TvdbID)
	assert.Equal(t, "https://img.test/t/p/w500/p.jpg", *meta.Images.Poster)
	assert.Equal(t, "https://img.test/t/p/w1280/b.jpg", *meta.Images.Backdrop)
	assert.Equal(t, 1999, *meta.Year)
}

func TestDetailsEpisode(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tv/1396":
			w.Write([]byte(`{"id":1396,"name":"Breaking Bad","first_air_date":"2008-01-20",
				"poster_path":"/show.jpg","external_ids":{"imdb_id":"tt0903747","tvdb_id":81189}}`))
		case "/tv/1396/season/3/episode/1":
			w.Write([]byte(`{"id":62085,"name":"No Mas","air_date":"2010-03-21","still_path":"/still.jpg"}`))
		default:
			http.NotFound(w, r)
		}
	})

	meta, err := client.Details(context.Background(), enrichment.Query{
		Kind:        models.MediaKindEpisode,
		Title:       "breaking bad",
		Season:      intPtr(3),
		Episode:     intPtr(1),
		ExternalIDs: models.ExternalIDs{TmdbRef: strPtr("1396")},
	})
	require.NoError(t, err)
	assert.Equal(t, "tv:1396:3:1", *meta.ExternalIDs.TmdbRef)
	assert.Equal(t, "81189", *meta.ExternalIDs.TvdbID)
	assert.Nil(t, meta.ExternalIDs.ImdbID)
	assert.Equal(t, "https://img.test/t/p/w500/show.jpg", *meta.Images.Poster)
	assert.Nil(t, meta.Images.Backdrop)
	assert.Equal(t, "https://img.test/t/p/w300/still.jpg", *meta.Images.Thumbnail)
}

func TestSearchMovie(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/movie", r.URL.Path)
		assert.Equal(t, "heat", r.URL.Query().Get("query"))
		assert.Equal(t, "1995", r.URL.Query().Get("year"))
		w.Write([]byte(`{"results":[
			{"id":949,"title":"Heat","release_date":"1995-12-15","poster_path":"/heat.jpg"},
			{"id":1,"title":"Heat","release_date":""}]}`))
	})

	candidates, err := client.Search(context.Background(), enrichment.Query{Kind: models.MediaKindMovie, Title: "heat", Year: intPtr(1995)})
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "Heat", candidates[0].Title)
	assert.Equal(t, 1995, *candidates[0].Year)
	assert.Equal(t, "movie:949", *candidates[0].Metadata.ExternalIDs.TmdbRef)
	assert.Nil(t, candidates[1].Year)
}

func TestSearchEpisodeUsesShowSearch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/tv", r.URL.Path)
		w.Write([]byte(`{"results":[{"id":1396,"name":"Breaking Bad","first_air_date":"2008-01-20"}]}`))
	})

	candidates, err := client.Search(context.Background(), enrichment.Query{
		Kind: models.MediaKindEpisode, Title: "breaking bad", Season: intPtr(2), Episode: intPtr(5),
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "tv:1396:2:5", *candidates[0].Metadata.ExternalIDs.TmdbRef)
	assert.Equal(t, 2008, *candidates[0].Year)
}

func TestNotFoundIsNotRetried(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.Details(context.Background(), enrichment.Query{
		Kind: models.MediaKindMovie, ExternalIDs: models.ExternalIDs{TmdbRef: strPtr("movie:1")},
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), hits.Load())
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"results":[]}`))
	})

	candidates, err := client.Search(context.Background(), enrichment.Query{Kind: models.MediaKindMovie, Title: "x"})
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Equal(t, int32(3), hits.Load())
}

func TestResponsesAreCached(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":603,"title":"The Matrix"}`))
	})
	q := enrichment.Query{Kind: models.MediaKindMovie, ExternalIDs: models.ExternalIDs{TmdbRef: strPtr("movie:603")}}

	_, err := client.Details(context.Background(), q)
	require.NoError(t, err)
	_, err = client.Details(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	q := enrichment.Query{Kind: models.MediaKindMovie, Title: "x"}

	_, err := client.Search(context.Background(), q)
	require.Error(t, err)
	assert.Equal(t, int32(maxRetries+1), hits.Load())

	_, err = client.Search(context.Background(), q)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(5), hits.Load())
}

func TestParseRef(t *testing.T) {
	episode := enrichment.Query{Kind: models.MediaKindEpisode, Season: intPtr(1), Episode: intPtr(2)}
	tests := []struct {
		ref     string
		q       enrichment.Query
		want    string
		wantErr bool
	}{
		{ref: "movie:603", want: "movie:603"},
		{ref: "tv:1399:1:2", want: "tv:1399:1:2"},
		{ref: "603", q: enrichment.Query{Kind: models.MediaKindMovie}, want: "movie:603"},
		{ref: "1399", q: episode, want: "tv:1399:1:2"},
		{ref: "1399", q: enrichment.Query{Kind: models.MediaKindEpisode}, wantErr: true},
		{ref: "tv:1399", wantErr: true},
		{ref: "movie:abc", wantErr: true},
		{ref: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			ref, err := ParseRef(tt.ref, tt.q)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ref.String())
		})
	}
}
