package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/campushub/gamification/internal/domain/gamification"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache keeps the points leaderboard in Redis.
//
// Layout:
//   - Sorted Set "leaderboard:points" stores userID -> total points
//   - Hash "leaderboard:info" stores userID -> LeaderboardEntry JSON
//   - String "leaderboard:meta" stores LeaderboardMeta and marks the projection warm
//
// Upserts between rebuilds only touch a warm projection, so a cache that
// expired is never served half-filled.
type LeaderboardCache struct {
	cache   *Cache
	ttl     time.Duration
	now     func() time.Time
	breaker *gobreaker.CircuitBreaker
}

var _ gamification.LeaderboardCache = (*LeaderboardCache)(nil)

const (
	keyLeaderboardPoints = "leaderboard:points"
	keyLeaderboardInfo   = "leaderboard:info"
	keyLeaderboardMeta   = "leaderboard:meta"

	// DefaultLeaderboardTTL bounds how long a projection survives without a
	// rebuild. The rebuild job runs well inside this window.
	DefaultLeaderboardTTL = 5 * time.Minute

	// tieWindowFactor caps the tie-widening read at this many times the
	// requested limit.
	tieWindowFactor = 4
)

// ErrTooManyTies is returned by Top when more users share the cutoff score
// than the widened read may fetch. It matches gamification.ErrLeaderboardCold,
// so readers fall back to the store.
var ErrTooManyTies = fmt.Errorf("%w: too many users tied at the cutoff", gamification.ErrLeaderboardCold)

// LeaderboardMeta describes the last rebuild.
type LeaderboardMeta struct {
	RebuiltAt   time.Time `json:"rebuilt_at"`
	TotalUsers  int64     `json:"total_users"`
	TotalPoints int64     `json:"total_points"`
}

// NewLeaderboardCache creates a LeaderboardCache. ttl <= 0 uses
// DefaultLeaderboardTTL.
func NewLeaderboardCache(cache *Cache, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = DefaultLeaderboardTTL
	}
	return &LeaderboardCache{cache: cache, ttl: ttl, now: time.Now}
}

// WithBreaker routes every Redis call through cb. While the circuit is open
// calls fail fast with gobreaker.ErrOpenState.
func (l *LeaderboardCache) WithBreaker(cb *gobreaker.CircuitBreaker) *LeaderboardCache {
	l.breaker = cb
	return l
}

func (l *LeaderboardCache) guard(ctx context.Context, fn func(context.Context) error) error {
	if l.breaker == nil {
		return fn(ctx)
	}
	_, err := l.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Upsert updates one user on a warm projection.
func (l *LeaderboardCache) Upsert(ctx context.Context, entry gamification.LeaderboardEntry) error {
	if entry.UserID == "" {
		return ErrEmptyUserID
	}
	return l.guard(ctx, func(ctx context.Context) error {
		return l.upsert(ctx, entry)
	})
}

func (l *LeaderboardCache) upsert(ctx context.Context, entry gamification.LeaderboardEntry) error {
	warm, err := l.isWarm(ctx)
	if err != nil || !warm {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	pipe := l.cache.Client().Pipeline()
	pipe.ZAdd(ctx, keyLeaderboardPoints, redis.Z{
		Score:  float64(entry.TotalPoints),
		Member: entry.UserID,
	})
	pipe.HSet(ctx, keyLeaderboardInfo, entry.UserID, data)

	_, err = pipe.Exec(ctx)
	return err
}

// Rebuild replaces the projection with entries in one MULTI/EXEC.
func (l *LeaderboardCache) Rebuild(ctx context.Context, entries []gamification.LeaderboardEntry) error {
	return l.guard(ctx, func(ctx context.Context) error {
		return l.rebuild(ctx, entries)
	})
}

func (l *LeaderboardCache) rebuild(ctx context.Context, entries []gamification.LeaderboardEntry) error {
	pipe := l.cache.Client().TxPipeline()

	pipe.Del(ctx, keyLeaderboardPoints, keyLeaderboardInfo)

	zMembers := make([]redis.Z, 0, len(entries))
	hashData := make(map[string]interface{}, len(entries))
	var totalPoints int64

	for _, entry := range entries {
		if entry.UserID == "" {
			continue
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEncoding, err)
		}

		zMembers = append(zMembers, redis.Z{
			Score:  float64(entry.TotalPoints),
			Member: entry.UserID,
		})
		hashData[entry.UserID] = data
		totalPoints += entry.TotalPoints
	}

	if len(zMembers) > 0 {
		pipe.ZAdd(ctx, keyLeaderboardPoints, zMembers...)
		pipe.HSet(ctx, keyLeaderboardInfo, hashData)
		pipe.Expire(ctx, keyLeaderboardPoints, l.ttl)
		pipe.Expire(ctx, keyLeaderboardInfo, l.ttl)
	}

	meta, err := json.Marshal(LeaderboardMeta{
		RebuiltAt:   l.now().UTC(),
		TotalUsers:  int64(len(zMembers)),
		TotalPoints: totalPoints,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	pipe.Set(ctx, keyLeaderboardMeta, meta, l.ttl)

	_, err = pipe.Exec(ctx)
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Top returns the first limit entries ordered by points, then username.
//
// Redis orders equal scores by member, not by username, so the read widens
// the window to every user tied with the last one before ranking. The widened
// read is capped; past the cap Top returns ErrTooManyTies.
func (l *LeaderboardCache) Top(ctx context.Context, limit int) ([]gamification.LeaderboardEntry, error) {
	if limit <= 0 {
		return []gamification.LeaderboardEntry{}, nil
	}

	var out []gamification.LeaderboardEntry
	err := l.guard(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.top(ctx, limit)
		return err
	})
	return out, err
}

func (l *LeaderboardCache) top(ctx context.Context, limit int) ([]gamification.LeaderboardEntry, error) {
	warm, err := l.isWarm(ctx)
	if err != nil {
		return nil, err
	}
	if !warm {
		return nil, gamification.ErrLeaderboardCold
	}

	client := l.cache.Client()

	window, err := client.ZRevRangeWithScores(ctx, keyLeaderboardPoints, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(window) == 0 {
		return []gamification.LeaderboardEntry{}, nil
	}

	if len(window) == limit {
		maxWindow := limit * tieWindowFactor
		floor := strconv.FormatFloat(window[len(window)-1].Score, 'f', -1, 64)
		window, err = client.ZRevRangeByScoreWithScores(ctx, keyLeaderboardPoints, &redis.ZRangeBy{
			Min:   floor,
			Max:   "+inf",
			Count: int64(maxWindow + 1),
		}).Result()
		if err != nil {
			return nil, err
		}
		if len(window) > maxWindow {
			return nil, ErrTooManyTies
		}
	}

	ids := make([]string, len(window))
	for i, z := range window {
		ids[i] = fmt.Sprint(z.Member)
	}

	infos, err := client.HMGet(ctx, keyLeaderboardInfo, ids...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]gamification.LeaderboardEntry, 0, len(ids))
	for i, raw := range infos {
		entry := gamification.LeaderboardEntry{UserID: ids[i]}
		if s, ok := raw.(string); ok {
			if err := json.Unmarshal([]byte(s), &entry); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
			}
		}
		// The sorted set is authoritative for points.
		entry.TotalPoints = int64(window[i].Score)
		entries = append(entries, entry)
	}

	gamification.RankEntries(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Meta returns the metadata of the last rebuild, or ErrLeaderboardCold.
func (l *LeaderboardCache) Meta(ctx context.Context) (*LeaderboardMeta, error) {
	var meta LeaderboardMeta
	err := l.guard(ctx, func(ctx context.Context) error {
		found, err := l.cache.getJSON(ctx, keyLeaderboardMeta, &meta)
		if err == nil && !found {
			return gamification.ErrLeaderboardCold
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func (l *LeaderboardCache) isWarm(ctx context.Context) (bool, error) {
	n, err := l.cache.Client().Exists(ctx, keyLeaderboardMeta).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
