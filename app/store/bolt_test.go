package store

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBolt(t *testing.T) *Bolt {
	t.Helper()

	b, err := NewBolt(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Close()) })

	return b
}

func TestBolt_SeedsDefaults(t *testing.T) {
	b := newTestBolt(t)

	feeds, err := b.List(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, feeds)

	for _, f := range feeds {
		assert.True(t, f.Default)
		assert.True(t, f.Enabled)
		assert.NotEmpty(t, f.URL)
	}
}

func TestBolt_PutGetDelete(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()

	f := Feed{ID: "custom", Name: "Custom", URL: "http://example.com/rss", Category: "Tech", Enabled: true}
	require.NoError(t, b.Put(ctx, f))

	got, err := b.Get(ctx, "custom")
	require.NoError(t, err)
	assert.Equal(t, "Custom", got.Name)
	assert.False(t, got.UpdatedAt.IsZero())

	require.NoError(t, b.Delete(ctx, "custom"))
	_, err = b.Get(ctx, "custom")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBolt_SetEnabled(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()

	feeds, err := b.List(ctx)
	require.NoError(t, err)
	id := feeds[0].ID

	require.NoError(t, b.SetEnabled(ctx, id, false))

	enabled, err := b.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, lo.ContainsBy(enabled, func(f Feed) bool { return f.ID == id }))

	err = b.SetEnabled(ctx, "ghost", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBolt_SettingsRoundtrip(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()

	s, err := b.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s, "defaults until something is saved")

	want := Settings{SummaryWords: 120, FetchTimeout: time.Minute}
	require.NoError(t, b.PutSettings(ctx, want))

	got, err := b.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBolt_CloseReleasesWatchers(t *testing.T) {
	b, err := NewBolt(t.TempDir())
	require.NoError(t, err)

	ch := b.Watch()
	require.NoError(t, b.Close())

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "watcher must be released on close")
	case <-time.After(time.Second):
		t.Fatal("watcher still blocked after close")
	}
}

func TestBolt_WatchNotifiesOnMutation(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()

	ch := b.Watch()

	require.NoError(t, b.Put(ctx, Feed{ID: "n", Name: "N", URL: "http://example.com", Enabled: true}))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change notification after put")
	}
}
