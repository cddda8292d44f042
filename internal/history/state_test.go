package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"who-is-live/internal/domain"
	"who-is-live/internal/logger"
)

var (
	kickFoo  = domain.IdentityKey{Platform: domain.PlatformKick, Name: "foo"}
	twitchFo = domain.IdentityKey{Platform: domain.PlatformTwitch, Name: "foo/bar"}
)

func newState() (*State, *MemoryStore) {
	store := NewMemoryStore()
	return New(store, logger.Nop()), store
}

func TestState_LastSeenRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newState()

	_, ok := s.LastSeen(ctx, kickFoo)
	assert.False(t, ok)

	at := time.Date(2024, 5, 1, 12, 30, 0, 123, time.UTC)
	require.NoError(t, s.SetLastSeen(ctx, kickFoo, at))

	got, ok := s.LastSeen(ctx, kickFoo)
	require.True(t, ok)
	assert.True(t, at.Equal(got))

	_, ok = s.LastSeen(ctx, twitchFo)
	assert.False(t, ok, "keys on other platforms must not collide")
}

func TestState_MalformedValuesAreAbsent(t *testing.T) {
	ctx := context.Background()
	s, store := newState()

	require.NoError(t, store.Set(ctx, lastSeenPrefix+kickFoo.String(), "yesterday"))
	require.NoError(t, store.Set(ctx, viewersPrefix+kickFoo.String(), "lots"))
	require.NoError(t, store.Set(ctx, bannedPrefix+"kick", "{not json"))
	require.NoError(t, store.Set(ctx, previousBannedKey, `["kick/ok","nowhere/x","noslash"]`))
	require.NoError(t, store.Set(ctx, lastSnapshotKey, "[]"))

	_, ok := s.LastSeen(ctx, kickFoo)
	assert.False(t, ok)
	_, ok = s.PreviousViewers(ctx, kickFoo)
	assert.False(t, ok)
	assert.Empty(t, s.BannedSet(ctx, domain.PlatformKick))
	assert.Equal(t, []domain.IdentityKey{{Platform: domain.PlatformKick, Name: "ok"}}, s.PreviousBanned(ctx))
	_, ok = s.LastSnapshot(ctx)
	assert.False(t, ok)
}

func TestState_NegativeViewersAreAbsent(t *testing.T) {
	ctx := context.Background()
	s, store := newState()
	require.NoError(t, store.Set(ctx, viewersPrefix+kickFoo.String(), "-5"))

	_, ok := s.PreviousViewers(ctx, kickFoo)
	assert.False(t, ok)
}

func TestState_PreviousViewers(t *testing.T) {
	ctx := context.Background()
	s, _ := newState()

	require.NoError(t, s.SetPreviousViewers(ctx, kickFoo, 80))
	n, ok := s.PreviousViewers(ctx, kickFoo)
	require.True(t, ok)
	assert.Equal(t, 80, n)
}

func TestState_BannedSet(t *testing.T) {
	ctx := context.Background()
	s, _ := newState()

	changed, err := s.AddBanned(ctx, domain.PlatformKick, "zed")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.AddBanned(ctx, domain.PlatformKick, "amy")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.AddBanned(ctx, domain.PlatformKick, "amy")
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, []string{"amy", "zed"}, s.BannedSet(ctx, domain.PlatformKick))
	assert.Empty(t, s.BannedSet(ctx, domain.PlatformTwitch))

	changed, err = s.RemoveBanned(ctx, domain.PlatformKick, "amy")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.RemoveBanned(ctx, domain.PlatformKick, "nobody")
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, []string{"zed"}, s.BannedSet(ctx, domain.PlatformKick))
}

func TestState_BannedSetConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s, _ := newState()

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for _, n := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			_, _ = s.AddBanned(ctx, domain.PlatformKick, n)
		}(n)
	}
	wg.Wait()

	assert.Equal(t, names, s.BannedSet(ctx, domain.PlatformKick))
}

func TestState_PreviousBanned(t *testing.T) {
	ctx := context.Background()
	s, _ := newState()

	assert.Empty(t, s.PreviousBanned(ctx))

	keys := []domain.IdentityKey{kickFoo, twitchFo}
	require.NoError(t, s.SetPreviousBanned(ctx, keys))
	assert.Equal(t, keys, s.PreviousBanned(ctx))

	require.NoError(t, s.SetPreviousBanned(ctx, nil))
	assert.Empty(t, s.PreviousBanned(ctx))
}

func TestState_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newState()

	seen := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	snap := &domain.Snapshot{
		ID:          "abc",
		CompletedAt: time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC),
		Partitions: domain.Partitions{
			Live:    []domain.StreamerStatus{{Platform: domain.PlatformKick, Name: "foo", IsLive: true, ViewerCount: 10, IsTopStreamer: true}},
			Offline: []domain.StreamerStatus{{Platform: domain.PlatformDLive, Name: "bar", LastSeenAt: &seen, LastSeenText: "1h ago"}},
		},
		Reports: []domain.AdapterReport{{Platform: domain.PlatformKick, Count: 1, Duration: time.Second}},
	}
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	got, ok := s.LastSnapshot(ctx)
	require.True(t, ok)
	assert.Equal(t, snap.ID, got.ID)
	assert.True(t, snap.CompletedAt.Equal(got.CompletedAt))
	require.Len(t, got.Partitions.Live, 1)
	assert.True(t, got.Partitions.Live[0].IsTopStreamer)
	require.Len(t, got.Partitions.Offline, 1)
	require.NotNil(t, got.Partitions.Offline[0].LastSeenAt)
	assert.True(t, seen.Equal(*got.Partitions.Offline[0].LastSeenAt))
	assert.Equal(t, time.Second, got.Reports[0].Duration)
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func TestState_ReadErrorsAreAbsent(t *testing.T) {
	ctx := context.Background()
	s := New(&failingStore{}, nil)

	_, ok := s.LastSeen(ctx, kickFoo)
	assert.False(t, ok)
	assert.Empty(t, s.PreviousBanned(ctx))
	_, ok = s.LastSnapshot(ctx)
	assert.False(t, ok)
}
