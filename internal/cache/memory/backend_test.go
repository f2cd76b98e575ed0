package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/graphweave/fedgate/internal/cache"
)

type fakeValue struct {
	value         string
	maxAge, stale int
}

func (v *fakeValue) MaxAgeSeconds() int                  { return v.maxAge }
func (v *fakeValue) StaleSeconds() int                   { return v.stale }
func (v *fakeValue) TTLSeconds() int                     { return v.maxAge + v.stale }
func (v *fakeValue) CacheTags(priority []string) []string { return priority }
func (v *fakeValue) ShouldPurgeRelated() bool            { return false }
func (v *fakeValue) ShouldCache() bool                   { return true }

func TestBackendPutThenGetIsHitWithinMaxAge(t *testing.T) {
	b := New()
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "ns", "ray", "k1", cache.Fresh, &fakeValue{value: "v", maxAge: 10, stale: 20}, nil))

	entry, err := b.Get(ctx, "ns", "k1")
	require.NoError(t, err)
	require.Equal(t, cache.Hit, entry.Kind())
}

func TestBackendGetMissForUnknownKey(t *testing.T) {
	b := New()
	entry, err := b.Get(context.Background(), "ns", "missing")
	require.NoError(t, err)
	require.Equal(t, cache.Miss, entry.Kind())
}

func TestBackendGetStaleAfterMaxAgeButWithinStaleWindow(t *testing.T) {
	now := time.Now()
	b := New()
	b.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "ns", "ray", "k1", cache.Fresh, &fakeValue{value: "v", maxAge: 10, stale: 20}, nil))

	b.SetClock(func() time.Time { return now.Add(15 * time.Second) })
	entry, err := b.Get(ctx, "ns", "k1")
	require.NoError(t, err)
	require.Equal(t, cache.StaleEntry, entry.Kind())
}

func TestBackendEvictsAfterFullTTL(t *testing.T) {
	now := time.Now()
	b := New()
	b.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "ns", "ray", "k1", cache.Fresh, &fakeValue{value: "v", maxAge: 10, stale: 20}, nil))

	b.SetClock(func() time.Time { return now.Add(31 * time.Second) })
	entry, err := b.Get(ctx, "ns", "k1")
	require.NoError(t, err)
	require.Equal(t, cache.Miss, entry.Kind())
}

func TestBackendPurgeByTagsRemovesMatchingEntries(t *testing.T) {
	b := New()
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "ns", "ray", "k1", cache.Fresh, &fakeValue{value: "v1", maxAge: 10, stale: 20}, []string{"User:1"}))
	require.NoError(t, b.Put(ctx, "ns", "ray", "k2", cache.Fresh, &fakeValue{value: "v2", maxAge: 10, stale: 20}, []string{"Post:1"}))

	require.NoError(t, b.PurgeByTags(ctx, []string{"User:1"}))

	e1, _ := b.Get(ctx, "ns", "k1")
	require.Equal(t, cache.Miss, e1.Kind())
	e2, _ := b.Get(ctx, "ns", "k2")
	require.Equal(t, cache.Hit, e2.Kind())
}

func TestBackendSweepEvictsWithoutAGet(t *testing.T) {
	now := time.Now()
	b := New()
	b.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "ns", "ray", "k1", cache.Fresh, &fakeValue{value: "v", maxAge: 1, stale: 1}, nil))

	b.SetClock(func() time.Time { return now.Add(5 * time.Second) })
	b.Sweep()

	for _, s := range b.shards {
		s.mu.Lock()
		n := len(s.items)
		s.mu.Unlock()
		require.Zero(t, n)
	}
}

func TestBackendPutOverwritesExistingEntry(t *testing.T) {
	b := New()
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "ns", "ray", "k1", cache.Fresh, &fakeValue{value: "first", maxAge: 10, stale: 20}, []string{"A"}))
	require.NoError(t, b.Put(ctx, "ns", "ray", "k1", cache.Fresh, &fakeValue{value: "second", maxAge: 10, stale: 20}, []string{"B"}))

	entry, err := b.Get(ctx, "ns", "k1")
	require.NoError(t, err)
	require.Equal(t, "second", entry.Value.(*fakeValue).value)

	// the old tag must no longer reference this key.
	require.NoError(t, b.PurgeByTags(ctx, []string{"A"}))
	entry, _ = b.Get(ctx, "ns", "k1")
	require.Equal(t, cache.Hit, entry.Kind())
}

func TestBackendNonFreshPutPreservesExistingFreshnessWindow(t *testing.T) {
	now := time.Now()
	b := New()
	b.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "ns", "ray", "k1", cache.Fresh, &fakeValue{value: "v0", maxAge: 10, stale: 20}, nil))

	b.SetClock(func() time.Time { return now.Add(15 * time.Second) })
	require.NoError(t, b.Put(ctx, "ns", "ray", "k1", cache.UpdateInProgress, &fakeValue{value: "v0", maxAge: 10, stale: 20}, nil))

	// still past max_age (10s) from the original Fresh put, even though
	// the UpdateInProgress put happened at t=15: the transition did not
	// restart the freshness window.
	entry, err := b.Get(ctx, "ns", "k1")
	require.NoError(t, err)
	require.Equal(t, cache.StaleEntry, entry.Kind())
	require.Equal(t, cache.UpdateInProgress, entry.State)
}
