package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/catalogarr/internal/models"
)

func TestSetResumeKeepsPositionWithinDuration(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	reports := []struct{ pos, dur int64 }{
		{1_000, 10_000},
		{12_000, 10_000},
		{-5, 10_000},
		{9_999, 10_000},
		{50_000, 20_000},
	}
	for _, r := range reports {
		mark, err := env.store.SetResume(ctx, "movie-x:2020", "default", r.pos, r.dur, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, mark.PositionMs, int64(0))
		assert.LessOrEqual(t, mark.PositionMs, mark.DurationMs)

		stored, err := env.store.GetResume(ctx, "movie-x:2020", "default")
		require.NoError(t, err)
		assert.LessOrEqual(t, stored.PositionMs, stored.DurationMs)
		assert.LessOrEqual(t, stored.PositionPercent, 100.0)
	}
}

func TestSetResumeCompletion(t *testing.T) {
	env := newTestEnv(t, Config{CompletionThreshold: 90})
	ctx := context.Background()

	mark, err := env.store.SetResume(ctx, "k", "default", 5_000, 10_000, nil)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, mark.PositionPercent, 0.001)
	assert.False(t, mark.IsCompleted)

	mark, err = env.store.SetResume(ctx, "k", "default", 9_000, 10_000, nil)
	require.NoError(t, err)
	assert.True(t, mark.IsCompleted)

	// Seeking back before the threshold resumes the item
	mark, err = env.store.SetResume(ctx, "k", "default", 1_000, 10_000, nil)
	require.NoError(t, err)
	assert.False(t, mark.IsCompleted)

	// Unknown duration never completes
	mark, err = env.store.SetResume(ctx, "k", "default", 1_000, 0, nil)
	require.NoError(t, err)
	assert.False(t, mark.IsCompleted)
	assert.Zero(t, mark.PositionPercent)
}

func TestSetResumeTracksLastSource(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	_, err := env.store.SetResume(ctx, "k", "default", 1_000, 10_000,
		&models.SourceRef{SourceType: models.SourceTelegram, SourceID: "chat/1"})
	require.NoError(t, err)

	// A report without source keeps the last known one
	mark, err := env.store.SetResume(ctx, "k", "default", 2_000, 10_000, nil)
	require.NoError(t, err)
	require.NotNil(t, mark.LastSourceType)
	assert.Equal(t, models.SourceTelegram, *mark.LastSourceType)
	require.NotNil(t, mark.LastSourceID)
	assert.Equal(t, "chat/1", *mark.LastSourceID)
}

func TestResumeIsPerProfile(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	_, err := env.store.SetResume(ctx, "k", "alice", 1_000, 10_000, nil)
	require.NoError(t, err)

	mark, err := env.store.GetResume(ctx, "k", "bob")
	require.NoError(t, err)
	assert.Nil(t, mark)
}

func TestClearResume(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	_, err := env.store.SetResume(ctx, "k", "default", 4_000, 10_000, nil)
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	require.NoError(t, env.store.ClearResume(ctx, "k", "default"))

	mark, err := env.store.GetResume(ctx, "k", "default")
	require.NoError(t, err)
	assert.Nil(t, mark)

	var row models.ResumeMark
	require.NoError(t, env.store.db.Where("canonical_key = ? AND profile_id = ?", "k", "default").Take(&row).Error)
	assert.Zero(t, row.PositionMs)
	require.NotNil(t, row.ClearedAt)

	// Clearing twice and clearing nothing are no-ops
	require.NoError(t, env.store.ClearResume(ctx, "k", "default"))
	require.NoError(t, env.store.ClearResume(ctx, "missing", "default"))

	// A new report revives the mark
	mark, err = env.store.SetResume(ctx, "k", "default", 2_000, 10_000, nil)
	require.NoError(t, err)
	assert.Nil(t, mark.ClearedAt)
	got, err := env.store.GetResume(ctx, "k", "default")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 2_000, got.PositionMs)
}

func TestSetResumeValidates(t *testing.T) {
	env := newTestEnv(t, Config{})

	_, err := env.store.SetResume(context.Background(), "", "default", 1, 2, nil)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = env.store.SetResume(context.Background(), "k", " ", 1, 2, nil)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
