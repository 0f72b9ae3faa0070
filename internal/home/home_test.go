package home

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/catalogarr/internal/live"
	"github.com/amaumene/catalogarr/internal/metrics"
	"github.com/amaumene/catalogarr/internal/models"
	"github.com/amaumene/catalogarr/internal/store"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newService(t *testing.T) (*Service, *store.Store, *clock) {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "home.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := metrics.NewNop()
	st := store.New(db, store.NewNotifier(), m, zerolog.Nop(), store.Config{Now: c.Now})
	obs := live.NewObserver(st.Notifier(), m, zerolog.Nop())
	return NewService(st, obs, Config{ContinueLimit: 30, RecentLimit: 60, NewWindow: 7 * 24 * time.Hour}, zerolog.Nop()), st, c
}

func intPtr(v int) *int { return &v }

func refs(types ...models.SourceType) []models.MediaSourceRef {
	out := make([]models.MediaSourceRef, 0, len(types))
	for i, st := range types {
		out = append(out, models.MediaSourceRef{SourceType: st, SourceID: string(st) + "-" + string(rune('a'+i))})
	}
	return out
}

func TestSelectSourcePriority(t *testing.T) {
	tests := []struct {
		name    string
		sources []models.MediaSourceRef
		want    models.SourceType
	}{
		{"xtream beats telegram", refs(models.SourceTelegram, models.SourceXtream), models.SourceXtream},
		{"telegram beats io", refs(models.SourceIo, models.SourceTelegram), models.SourceTelegram},
		{"io alone", refs(models.SourceIo), models.SourceIo},
		{"all three", refs(models.SourceIo, models.SourceTelegram, models.SourceXtream), models.SourceXtream},
		{"empty set", nil, models.SourceUnknown},
		{"only unusable refs", refs(models.SourceType("other"), models.SourceUnknown), models.SourceUnknown},
	}

	allowed := map[models.SourceType]bool{
		models.SourceXtream: true, models.SourceTelegram: true, models.SourceIo: true, models.SourceUnknown: true,
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				got, ref := SelectSource(tt.sources)
				assert.Equal(t, tt.want, got)
				assert.True(t, allowed[got])
				if got == models.SourceUnknown {
					assert.Nil(t, ref)
				} else {
					require.NotNil(t, ref)
					assert.Equal(t, got, ref.SourceType)
				}
			}
		})
	}
}

func TestSelectSourceEarliestWithinType(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sources := []models.MediaSourceRef{
		{SourceType: models.SourceXtream, SourceID: "late", AddedAt: base.Add(time.Hour)},
		{SourceType: models.SourceXtream, SourceID: "early", AddedAt: base},
	}
	_, ref := SelectSource(sources)
	assert.Equal(t, "early", ref.SourceID)
}

func TestRecentlyAdded(t *testing.T) {
	svc, st, c := newService(t)
	ctx := context.Background()

	_, err := st.Upsert(ctx, models.RawMediaMetadata{Title: "Old Film", Year: intPtr(1990)},
		models.SourceRef{SourceType: models.SourceIo, SourceID: "/old.mkv"})
	require.NoError(t, err)

	c.Advance(10 * 24 * time.Hour)
	_, err = st.Upsert(ctx, models.RawMediaMetadata{Title: "New Film", Year: intPtr(2026)},
		models.SourceRef{SourceType: models.SourceTelegram, SourceID: "chat/9"})
	require.NoError(t, err)
	_, err = st.Upsert(ctx, models.RawMediaMetadata{Title: "New Film", Year: intPtr(2026)},
		models.SourceRef{SourceType: models.SourceXtream, SourceID: "vod/9"})
	require.NoError(t, err)

	items, err := svc.RecentlyAdded(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "New Film", items[0].Title)
	assert.True(t, items[0].IsNew)
	assert.Equal(t, models.SourceXtream, items[0].Source)
	assert.Equal(t, NavigationTarget{
		Screen:       ScreenPlayer,
		CanonicalKey: "new-film:2026",
		SourceType:   models.SourceXtream,
		SourceID:     "vod/9",
	}, items[0].Navigation)

	assert.Equal(t, "Old Film", items[1].Title)
	assert.False(t, items[1].IsNew)
	assert.Equal(t, models.SourceIo, items[1].Source)

	items, err = svc.RecentlyAdded(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestContinueWatchingFollowsSourcePriority(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	id, err := st.Upsert(ctx, models.RawMediaMetadata{Title: "Movie X", Year: intPtr(2020)},
		models.SourceRef{SourceType: models.SourceTelegram, SourceID: "chat/1"})
	require.NoError(t, err)
	_, err = st.Upsert(ctx, models.RawMediaMetadata{Title: "Movie X", Year: intPtr(2020)},
		models.SourceRef{SourceType: models.SourceXtream, SourceID: "vod/1"})
	require.NoError(t, err)

	// Played from Telegram; both shelves still show the Xtream copy
	_, err = st.SetResume(ctx, id.Key, "default", 3_000, 10_000,
		&models.SourceRef{SourceType: models.SourceTelegram, SourceID: "chat/1"})
	require.NoError(t, err)

	items, err := svc.ContinueWatching(ctx, "default", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	item := items[0]
	assert.Equal(t, models.SourceXtream, item.Source)
	assert.EqualValues(t, 3_000, item.PositionMs)
	assert.EqualValues(t, 10_000, item.DurationMs)
	assert.InDelta(t, 30.0, item.PositionPercent, 0.001)
	assert.Equal(t, NavigationTarget{
		Screen:       ScreenPlayer,
		CanonicalKey: id.Key,
		SourceType:   models.SourceXtream,
		SourceID:     "vod/1",
		StartMs:      3_000,
	}, item.Navigation)

	recent, err := svc.RecentlyAdded(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, item.Source, recent[0].Source)
	assert.Equal(t, item.Navigation.SourceID, recent[0].Navigation.SourceID)
}

func TestObserveContinueWatchingEndToEnd(t *testing.T) {
	svc, st, c := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := svc.ObserveContinueWatching(ctx, "default")
	first := <-ch
	require.NoError(t, first.Err)
	assert.Empty(t, first.Value)

	id, err := st.Upsert(ctx, models.RawMediaMetadata{Title: "Movie X", Year: intPtr(2020)},
		models.SourceRef{SourceType: models.SourceTelegram, SourceID: "t1"})
	require.NoError(t, err)
	poster := "https://img/x.jpg"
	_, err = st.Upsert(ctx, models.RawMediaMetadata{Title: "Movie X", Year: intPtr(2020), Images: models.Images{Poster: &poster}},
		models.SourceRef{SourceType: models.SourceXtream, SourceID: "x1"})
	require.NoError(t, err)

	c.Advance(time.Minute)
	_, err = st.SetResume(ctx, id.Key, "default", 50, 100, nil)
	require.NoError(t, err)

	waitFor := func(want int) []HomeItem {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case u := <-ch:
				require.NoError(t, u.Err)
				if len(u.Value) == want {
					return u.Value
				}
			case <-timeout:
				t.Fatalf("shelf never reached %d items", want)
			}
		}
	}

	items := waitFor(1)
	assert.Equal(t, "Movie X", items[0].Title)
	require.NotNil(t, items[0].Images.Poster)
	assert.Equal(t, poster, *items[0].Images.Poster)
	assert.Equal(t, models.SourceXtream, items[0].Source)

	_, err = st.SetResume(ctx, id.Key, "default", 98, 100, nil)
	require.NoError(t, err)
	waitFor(0)

	cancel()
	for range ch {
	}
	assert.Equal(t, 0, st.Notifier().ListenerCount())
}
