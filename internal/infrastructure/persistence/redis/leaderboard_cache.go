package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/practice-hub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache stores leaderboard snapshots in Redis so every API
// instance serves the same ranking.
//
// Layout, per snapshot id:
//   - Sorted set "leaderboard:<id>:rank:<key>:<order>" holds user ids scored
//     by their 0-based position under that ordering
//   - Hash "leaderboard:<id>:rows" holds user id -> entry JSON
//
// The hash "leaderboard:meta" names the current snapshot. Store writes the
// new snapshot's keys first and swaps meta last, so readers see either the
// old snapshot or the new one. Superseded keys expire after retainOld.
type LeaderboardCache struct {
	cache     *Cache
	retainOld time.Duration
}

var _ leaderboard.Cache = (*LeaderboardCache)(nil)

// DefaultRetainOld keeps a superseded snapshot readable for in-flight pages.
const DefaultRetainOld = 2 * time.Minute

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache, retainOld: DefaultRetainOld}
}

func (l *LeaderboardCache) metaKey() string {
	return l.cache.Key("leaderboard", "meta")
}

func (l *LeaderboardCache) rowsKey(snapshotID string) string {
	return l.cache.Key("leaderboard", snapshotID, "rows")
}

func (l *LeaderboardCache) rankKey(snapshotID string, o leaderboard.Ordering) string {
	return l.cache.Key("leaderboard", snapshotID, "rank", string(o.Key), string(o.Order))
}

func (l *LeaderboardCache) snapshotKeys(snapshotID string) []string {
	keys := []string{l.rowsKey(snapshotID)}
	for _, o := range leaderboard.Orderings() {
		keys = append(keys, l.rankKey(snapshotID, o))
	}
	return keys
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Store writes s and makes it the current snapshot.
func (l *LeaderboardCache) Store(ctx context.Context, s *leaderboard.Snapshot) error {
	orderings := leaderboard.Orderings()
	rankings := make([]*leaderboard.Ranking, len(orderings))

	entries := s.Entries()
	g, _ := errgroup.WithContext(ctx)
	for i, o := range orderings {
		g.Go(func() error {
			r, err := leaderboard.NewRanking(entries, o)
			if err != nil {
				return fmt.Errorf("failed to rank %s: %w", o, err)
			}
			rankings[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	previous, err := l.currentID(ctx)
	if err != nil && !errors.Is(err, leaderboard.ErrCacheMiss) {
		return err
	}

	rows := make(map[string]any, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		rows[e.UserID] = data
	}

	pipe := l.cache.Client().TxPipeline()
	if len(rows) > 0 {
		pipe.HSet(ctx, l.rowsKey(s.ID), rows)
	}
	for i, r := range rankings {
		all := r.All()
		if len(all) == 0 {
			continue
		}
		members := make([]redis.Z, len(all))
		for j, row := range all {
			members[j] = redis.Z{Score: float64(row.Rank - 1), Member: row.UserID}
		}
		pipe.ZAdd(ctx, l.rankKey(s.ID, orderings[i]), members...)
	}
	pipe.HSet(ctx, l.metaKey(), encodeMeta(s.Meta()))
	if previous != "" && previous != s.ID {
		for _, key := range l.snapshotKeys(previous) {
			pipe.Expire(ctx, key, l.retainOld)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store leaderboard snapshot: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Meta returns the current snapshot's metadata or leaderboard.ErrCacheMiss.
func (l *LeaderboardCache) Meta(ctx context.Context) (leaderboard.SnapshotMeta, error) {
	fields, err := l.cache.Client().HGetAll(ctx, l.metaKey()).Result()
	if err != nil {
		return leaderboard.SnapshotMeta{}, fmt.Errorf("failed to read leaderboard meta: %w", err)
	}
	return decodeMeta(fields)
}

func (l *LeaderboardCache) currentID(ctx context.Context) (string, error) {
	meta, err := l.Meta(ctx)
	if err != nil {
		return "", err
	}
	return meta.ID, nil
}

// Page returns one page of the current snapshot.
func (l *LeaderboardCache) Page(ctx context.Context, q leaderboard.Query) (leaderboard.Page, error) {
	q = q.Normalize()
	meta, err := l.Meta(ctx)
	if err != nil {
		return leaderboard.Page{}, err
	}

	page := leaderboard.Page{
		Rows:    []leaderboard.Row{},
		Limit:   q.Limit,
		Offset:  q.Offset,
		Total:   meta.Total,
		BuiltAt: meta.BuiltAt,
	}
	if q.Offset >= meta.Total {
		return page, nil
	}

	start, stop := int64(q.Offset), int64(q.Offset+q.Limit-1)
	ids, err := l.cache.Client().ZRange(ctx, l.rankKey(meta.ID, q.Ordering()), start, stop).Result()
	if err != nil {
		return leaderboard.Page{}, fmt.Errorf("failed to read leaderboard range: %w", err)
	}
	if len(ids) == 0 {
		// meta points at a snapshot whose keys are gone
		return leaderboard.Page{}, leaderboard.ErrCacheMiss
	}

	data, err := l.cache.Client().HMGet(ctx, l.rowsKey(meta.ID), ids...).Result()
	if err != nil {
		return leaderboard.Page{}, fmt.Errorf("failed to read leaderboard rows: %w", err)
	}

	for i, raw := range data {
		s, ok := raw.(string)
		if !ok {
			return leaderboard.Page{}, leaderboard.ErrCacheMiss
		}
		var e leaderboard.Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return leaderboard.Page{}, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		page.Rows = append(page.Rows, leaderboard.Row{Rank: leaderboard.Rank(q.Offset + i + 1), Entry: e})
	}
	return page, nil
}

// Position returns a user's rank in the current snapshot.
func (l *LeaderboardCache) Position(ctx context.Context, userID string, o leaderboard.Ordering) (leaderboard.Rank, bool, error) {
	meta, err := l.Meta(ctx)
	if err != nil {
		return 0, false, err
	}
	if meta.Total == 0 {
		return 0, false, nil
	}

	idx, err := l.cache.Client().ZRank(ctx, l.rankKey(meta.ID, o), userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read leaderboard rank: %w", err)
	}
	return leaderboard.Rank(idx + 1), true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// METADATA ENCODING
// ══════════════════════════════════════════════════════════════════════════════

func encodeMeta(m leaderboard.SnapshotMeta) map[string]any {
	return map[string]any{
		"id":       m.ID,
		"built_at": m.BuiltAt.UTC().Format(time.RFC3339Nano),
		"total":    strconv.Itoa(m.Total),
	}
}

func decodeMeta(fields map[string]string) (leaderboard.SnapshotMeta, error) {
	id, ok := fields["id"]
	if !ok || id == "" {
		return leaderboard.SnapshotMeta{}, leaderboard.ErrCacheMiss
	}
	builtAt, err := time.Parse(time.RFC3339Nano, fields["built_at"])
	if err != nil {
		return leaderboard.SnapshotMeta{}, fmt.Errorf("%w: built_at: %v", ErrCacheSerialization, err)
	}
	total, err := strconv.Atoi(fields["total"])
	if err != nil {
		return leaderboard.SnapshotMeta{}, fmt.Errorf("%w: total: %v", ErrCacheSerialization, err)
	}
	return leaderboard.SnapshotMeta{ID: id, BuiltAt: builtAt, Total: total}, nil
}
