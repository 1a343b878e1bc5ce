package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/practice-hub/config"
	"github.com/alem-hub/practice-hub/internal/domain/leaderboard"
)

// ─────────────────────────────────────────────────────────────────────────────
// In-process Redis
// ─────────────────────────────────────────────────────────────────────────────

func newTestCache(t *testing.T) (*LeaderboardCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cache, err := NewCache(context.Background(), config.RedisConfig{
		URL:       "redis://" + mr.Addr(),
		KeyPrefix: "ph:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	return NewLeaderboardCache(cache), mr
}

var builtAt = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

func badgeAt(h int) *time.Time {
	t := time.Date(2026, 2, 1, h, 0, 0, 0, time.UTC)
	return &t
}

func cacheEntries() []leaderboard.Entry {
	updated := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	return []leaderboard.Entry{
		{UserID: "dana", TotalXP: 500, CurrentLevel: 3, CurrentStreak: 2, BadgesEarned: 1, FirstBadgeAt: badgeAt(9), UpdatedAt: updated},
		{UserID: "ali", TotalXP: 500, CurrentLevel: 3, CurrentStreak: 5, BadgesEarned: 2, FirstBadgeAt: badgeAt(8), UpdatedAt: updated},
		{UserID: "bek", TotalXP: 500, CurrentLevel: 3, CurrentStreak: 1, UpdatedAt: updated},
		{UserID: "aru", TotalXP: 500, CurrentLevel: 3, CurrentStreak: 1, UpdatedAt: updated},
		{UserID: "zhan", TotalXP: 900, CurrentLevel: 4, BadgesEarned: 3, FirstBadgeAt: badgeAt(10), UpdatedAt: updated},
		{UserID: "nur", TotalXP: 50, CurrentLevel: 1, CurrentStreak: 9, UpdatedAt: updated},
		{UserID: "timur", TotalXP: 120, CurrentLevel: 1, CurrentStreak: 3, BadgesEarned: 1, FirstBadgeAt: badgeAt(9), UpdatedAt: updated},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads match the in-memory snapshot
// ─────────────────────────────────────────────────────────────────────────────

func TestLeaderboardCache_PageMatchesSnapshot(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestCache(t)

	snap := leaderboard.NewSnapshot("s1", cacheEntries(), builtAt)
	require.NoError(t, l.Store(ctx, snap))

	for _, o := range leaderboard.Orderings() {
		for _, offset := range []int{0, 3, 6, 7, 20} {
			t.Run(fmt.Sprintf("%s/offset=%d", o, offset), func(t *testing.T) {
				q := leaderboard.Query{Limit: 3, Offset: offset, SortBy: o.Key, Order: o.Order}

				want, err := snap.Page(q)
				require.NoError(t, err)
				got, err := l.Page(ctx, q)
				require.NoError(t, err)

				assert.Equal(t, want, got)
			})
		}
	}
}

func TestLeaderboardCache_PositionMatchesSnapshot(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestCache(t)

	snap := leaderboard.NewSnapshot("s1", cacheEntries(), builtAt)
	require.NoError(t, l.Store(ctx, snap))

	for _, o := range leaderboard.Orderings() {
		for _, e := range cacheEntries() {
			want, wantOK, err := snap.Position(e.UserID, o)
			require.NoError(t, err)
			got, ok, err := l.Position(ctx, e.UserID, o)
			require.NoError(t, err)

			assert.Equal(t, wantOK, ok, "%s %s", o, e.UserID)
			assert.Equal(t, want, got, "%s %s", o, e.UserID)
		}

		_, ok, err := l.Position(ctx, "ghost", o)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestLeaderboardCache_EmptySnapshot(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestCache(t)

	require.NoError(t, l.Store(ctx, leaderboard.NewSnapshot("empty", nil, builtAt)))

	meta, err := l.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, leaderboard.SnapshotMeta{ID: "empty", BuiltAt: builtAt}, meta)

	page, err := l.Page(ctx, leaderboard.DefaultQuery())
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Zero(t, page.Total)

	_, ok, err := l.Position(ctx, "ali", leaderboard.Orderings()[0])
	require.NoError(t, err)
	assert.False(t, ok)
}

// ─────────────────────────────────────────────────────────────────────────────
// Snapshot swap
// ─────────────────────────────────────────────────────────────────────────────

func TestLeaderboardCache_StoreSwapsMeta(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestCache(t)

	first := leaderboard.NewSnapshot("s1", cacheEntries(), builtAt)
	require.NoError(t, l.Store(ctx, first))

	entries := cacheEntries()
	entries[5].TotalXP = 2000 // nur takes the lead
	second := leaderboard.NewSnapshot("s2", entries, builtAt.Add(time.Minute))
	require.NoError(t, l.Store(ctx, second))

	meta, err := l.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Meta(), meta)

	page, err := l.Page(ctx, leaderboard.DefaultQuery())
	require.NoError(t, err)
	require.NotEmpty(t, page.Rows)
	assert.Equal(t, "nur", page.Rows[0].UserID)
	assert.Equal(t, builtAt.Add(time.Minute), page.BuiltAt)

	// The superseded snapshot expires; the current one does not.
	for _, key := range l.snapshotKeys("s1") {
		assert.Equal(t, DefaultRetainOld, mr.TTL(key), key)
	}
	for _, key := range l.snapshotKeys("s2") {
		assert.Zero(t, mr.TTL(key), key)
	}

	mr.FastForward(DefaultRetainOld + time.Second)
	for _, key := range l.snapshotKeys("s1") {
		assert.False(t, mr.Exists(key), key)
	}

	page, err = l.Page(ctx, leaderboard.DefaultQuery())
	require.NoError(t, err)
	assert.Equal(t, "nur", page.Rows[0].UserID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Cache misses
// ─────────────────────────────────────────────────────────────────────────────

func TestLeaderboardCache_MissWithoutSnapshot(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestCache(t)

	_, err := l.Meta(ctx)
	assert.ErrorIs(t, err, leaderboard.ErrCacheMiss)

	_, err = l.Page(ctx, leaderboard.DefaultQuery())
	assert.ErrorIs(t, err, leaderboard.ErrCacheMiss)

	_, _, err = l.Position(ctx, "ali", leaderboard.Orderings()[0])
	assert.ErrorIs(t, err, leaderboard.ErrCacheMiss)
}

func TestLeaderboardCache_MissWhenSnapshotKeysExpired(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestCache(t)

	require.NoError(t, l.Store(ctx, leaderboard.NewSnapshot("s1", cacheEntries(), builtAt)))
	require.NoError(t, l.Store(ctx, leaderboard.NewSnapshot("s2", cacheEntries(), builtAt)))

	// Meta naming an expired snapshot reads as a miss.
	mr.FastForward(DefaultRetainOld + time.Second)
	mr.HSet(l.metaKey(), "id", "s1")

	_, err := l.Page(ctx, leaderboard.DefaultQuery())
	assert.ErrorIs(t, err, leaderboard.ErrCacheMiss)
}

func TestLeaderboardCache_MissWhenRowsMissing(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestCache(t)

	require.NoError(t, l.Store(ctx, leaderboard.NewSnapshot("s1", cacheEntries(), builtAt)))
	mr.Del(l.rowsKey("s1"))

	_, err := l.Page(ctx, leaderboard.DefaultQuery())
	assert.ErrorIs(t, err, leaderboard.ErrCacheMiss)
}

func TestLeaderboardCache_CorruptMeta(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestCache(t)

	require.NoError(t, l.Store(ctx, leaderboard.NewSnapshot("s1", cacheEntries(), builtAt)))
	mr.HSet(l.metaKey(), "total", "many")

	_, err := l.Meta(ctx)
	assert.ErrorIs(t, err, ErrCacheSerialization)
}
