package redis

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/gamification/internal/domain/gamification"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Host = mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg.Port = port

	cache, err := NewCache(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

// unreachableCache points at a port nothing listens on.
func unreachableCache(t *testing.T) *Cache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return &Cache{client: client, config: DefaultConfig()}
}

func entry(id, username string, points int64) gamification.LeaderboardEntry {
	return gamification.LeaderboardEntry{UserID: id, Username: username, TotalPoints: points, Level: 1}
}

func TestNewLeaderboardCache_DefaultTTL(t *testing.T) {
	lc := NewLeaderboardCache(nil, 0)
	assert.Equal(t, DefaultLeaderboardTTL, lc.ttl)

	lc = NewLeaderboardCache(nil, time.Minute)
	assert.Equal(t, time.Minute, lc.ttl)
}

func TestNewCache_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.DialTimeout = 100 * time.Millisecond
	cfg.MaxRetries = -1

	_, err := NewCache(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrConnect)
}

func TestLeaderboardCache_TopWithoutLimitSkipsRedis(t *testing.T) {
	lc := NewLeaderboardCache(unreachableCache(t), time.Minute)

	entries, err := lc.Top(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLeaderboardCache_ColdUntilRebuilt(t *testing.T) {
	cache, mr := newTestCache(t)
	lc := NewLeaderboardCache(cache, time.Minute)
	ctx := context.Background()

	_, err := lc.Top(ctx, 10)
	assert.ErrorIs(t, err, gamification.ErrLeaderboardCold)

	_, err = lc.Meta(ctx)
	assert.ErrorIs(t, err, gamification.ErrLeaderboardCold)

	// Upserts on a cold projection must not make it look warm.
	require.NoError(t, lc.Upsert(ctx, entry("u1", "amy", 10)))
	assert.False(t, mr.Exists(keyLeaderboardPoints))

	_, err = lc.Top(ctx, 10)
	assert.ErrorIs(t, err, gamification.ErrLeaderboardCold)
}

func TestLeaderboardCache_RebuildAndTop(t *testing.T) {
	cache, mr := newTestCache(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lc := NewLeaderboardCache(cache, time.Minute)
	lc.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, lc.Rebuild(ctx, []gamification.LeaderboardEntry{
		entry("u1", "zoe", 50),
		entry("u2", "amy", 50),
		entry("u3", "bob", 20),
		entry("", "ghost", 999),
	}))

	// u1 sorts before u2 in Redis, but the tie is broken by username.
	top, err := lc.Top(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "u2", top[0].UserID)
	assert.Equal(t, 1, top[0].Rank)

	top, err = lc.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"u2", "u1", "u3"}, []string{top[0].UserID, top[1].UserID, top[2].UserID})
	assert.Equal(t, []int{1, 2, 3}, []int{top[0].Rank, top[1].Rank, top[2].Rank})

	meta, err := lc.Meta(ctx)
	require.NoError(t, err)
	assert.True(t, now.Equal(meta.RebuiltAt))
	assert.EqualValues(t, 3, meta.TotalUsers)
	assert.EqualValues(t, 120, meta.TotalPoints)

	assert.Equal(t, time.Minute, mr.TTL(keyLeaderboardPoints))
	assert.Equal(t, time.Minute, mr.TTL(keyLeaderboardMeta))
}

func TestLeaderboardCache_UpsertOnWarmProjection(t *testing.T) {
	cache, _ := newTestCache(t)
	lc := NewLeaderboardCache(cache, time.Minute)
	ctx := context.Background()

	require.NoError(t, lc.Rebuild(ctx, []gamification.LeaderboardEntry{entry("u1", "amy", 10)}))
	require.NoError(t, lc.Upsert(ctx, entry("u2", "bob", 30)))
	assert.ErrorIs(t, lc.Upsert(ctx, entry("", "nobody", 1)), ErrEmptyUserID)

	top, err := lc.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "u2", top[0].UserID)
	assert.EqualValues(t, 30, top[0].TotalPoints)
	assert.Equal(t, "bob", top[0].Username)
}

func TestLeaderboardCache_TooManyTiesFallsBack(t *testing.T) {
	cache, _ := newTestCache(t)
	lc := NewLeaderboardCache(cache, time.Minute)
	ctx := context.Background()

	// Everybody still on the zero-point floor.
	var entries []gamification.LeaderboardEntry
	for i := 0; i < 2*tieWindowFactor+1; i++ {
		entries = append(entries, entry(fmt.Sprintf("u%02d", i), fmt.Sprintf("user%02d", i), 0))
	}
	require.NoError(t, lc.Rebuild(ctx, entries))

	_, err := lc.Top(ctx, 2)
	assert.ErrorIs(t, err, ErrTooManyTies)
	assert.ErrorIs(t, err, gamification.ErrLeaderboardCold)

	// A wider page fits inside the cap.
	top, err := lc.Top(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "user00", top[0].Username)
}

func TestLeaderboardCache_BreakerOpensOnOutage(t *testing.T) {
	var transitions []gobreaker.State
	cb := NewBreaker("test", func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}, gamification.ErrLeaderboardCold)

	lc := NewLeaderboardCache(unreachableCache(t), time.Minute).WithBreaker(cb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := lc.Top(ctx, 10)
		require.Error(t, err)
		assert.False(t, IsBreakerOpen(err))
	}

	_, err := lc.Top(ctx, 10)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	err = lc.Upsert(ctx, entry("u1", "amy", 10))
	assert.True(t, IsBreakerOpen(err))

	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
}

func TestLeaderboardCache_ColdReadsDoNotTripBreaker(t *testing.T) {
	cache, _ := newTestCache(t)
	cb := NewBreaker("test", nil, gamification.ErrLeaderboardCold)
	lc := NewLeaderboardCache(cache, time.Minute).WithBreaker(cb)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := lc.Top(ctx, 10)
		assert.ErrorIs(t, err, gamification.ErrLeaderboardCold)
		_, err = lc.Meta(ctx)
		assert.ErrorIs(t, err, gamification.ErrLeaderboardCold)
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Zero(t, cb.Counts().ConsecutiveFailures)
}

func TestLeaderboardCache_MetaReportsOutage(t *testing.T) {
	cb := NewBreaker("test", nil, gamification.ErrLeaderboardCold)
	lc := NewLeaderboardCache(unreachableCache(t), time.Minute).WithBreaker(cb)

	meta, err := lc.Meta(context.Background())
	require.Error(t, err)
	assert.Nil(t, meta)
	assert.NotErrorIs(t, err, gamification.ErrLeaderboardCold)
}

func TestBreakerSettings_IgnoresCancellation(t *testing.T) {
	st := BreakerSettings("test", nil)
	assert.True(t, st.IsSuccessful(nil))
	assert.True(t, st.IsSuccessful(context.Canceled))
	assert.False(t, st.IsSuccessful(context.DeadlineExceeded))
	assert.False(t, st.ReadyToTrip(gobreaker.Counts{ConsecutiveFailures: 2}))
	assert.True(t, st.ReadyToTrip(gobreaker.Counts{ConsecutiveFailures: 3}))
}
