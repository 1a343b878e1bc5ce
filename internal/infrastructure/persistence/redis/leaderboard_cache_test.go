package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/practice-hub/config"
	"github.com/alem-hub/practice-hub/internal/domain/leaderboard"
)

func TestMetaEncoding(t *testing.T) {
	meta := leaderboard.SnapshotMeta{
		ID:      "snap-1",
		BuiltAt: time.Date(2026, 3, 2, 18, 0, 0, 123, time.UTC),
		Total:   42,
	}

	fields := map[string]string{}
	for k, v := range encodeMeta(meta) {
		fields[k] = v.(string)
	}
	got, err := decodeMeta(fields)
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestDecodeMeta_Missing(t *testing.T) {
	_, err := decodeMeta(map[string]string{})
	assert.ErrorIs(t, err, leaderboard.ErrCacheMiss)

	_, err = decodeMeta(map[string]string{"id": "x", "built_at": "yesterday", "total": "1"})
	assert.ErrorIs(t, err, ErrCacheSerialization)
}

func TestLeaderboardCache_Keys(t *testing.T) {
	l := NewLeaderboardCache(&Cache{prefix: "ph:"})

	assert.Equal(t, "ph:leaderboard:meta", l.metaKey())
	assert.Equal(t, "ph:leaderboard:s1:rows", l.rowsKey("s1"))
	assert.Equal(t, "ph:leaderboard:s1:rank:current_streak:asc",
		l.rankKey("s1", leaderboard.Ordering{Key: leaderboard.SortByCurrentStreak, Order: leaderboard.OrderAsc}))

	keys := l.snapshotKeys("s1")
	assert.Len(t, keys, 1+len(leaderboard.Orderings()))
}

func TestOptions(t *testing.T) {
	opts, err := Options(config.RedisConfig{Host: "cache", Port: 6380, DB: 2, PoolSize: 7})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = Options(config.RedisConfig{URL: "redis://:secret@example:6379/3"})
	require.NoError(t, err)
	assert.Equal(t, "example:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)

	_, err = Options(config.RedisConfig{URL: "http://nope"})
	assert.Error(t, err)
}
