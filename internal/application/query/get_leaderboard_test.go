package query

import (
	"context"
	"errors"
	"testing"

	"github.com/campushub/gamification/internal/domain/gamification"
	"github.com/campushub/gamification/internal/infrastructure/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	entries []gamification.LeaderboardEntry
	err     error
	limit   int
}

func (r *stubReader) Leaderboard(_ context.Context, limit int) ([]gamification.LeaderboardEntry, error) {
	r.limit = limit
	return r.entries, r.err
}

type failingCache struct{ *memory.LeaderboardCache }

func (failingCache) Top(context.Context, int) ([]gamification.LeaderboardEntry, error) {
	return nil, errors.New("connection refused")
}

func TestGetLeaderboard_ColdCacheFallsBackToStore(t *testing.T) {
	reader := &stubReader{entries: []gamification.LeaderboardEntry{{Rank: 1, UserID: "u1", TotalPoints: 10}}}
	h := NewGetLeaderboardHandler(reader, memory.NewLeaderboardCache(), nil)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	require.NoError(t, err)

	assert.Equal(t, SourceStore, res.Source)
	assert.Equal(t, 50, reader.limit, "zero limit uses the default")
	assert.Len(t, res.Entries, 1)
}

func TestGetLeaderboard_WarmCache(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewLeaderboardCache()
	require.NoError(t, cache.Rebuild(ctx, []gamification.LeaderboardEntry{
		{UserID: "u1", Username: "bob", TotalPoints: 50},
		{UserID: "u2", Username: "alice", TotalPoints: 50},
		{UserID: "u3", Username: "carol", TotalPoints: 90},
	}))

	reader := &stubReader{}
	h := NewGetLeaderboardHandler(reader, cache, nil)

	res, err := h.Handle(ctx, GetLeaderboardQuery{Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, SourceCache, res.Source)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "carol", res.Entries[0].Username)
	assert.Equal(t, "alice", res.Entries[1].Username, "ties break on username")
	assert.Equal(t, 2, res.Entries[1].Rank)
	assert.Zero(t, reader.limit, "store not consulted")
}

func TestGetLeaderboard_CacheErrorFallsBack(t *testing.T) {
	reader := &stubReader{entries: []gamification.LeaderboardEntry{}}
	h := NewGetLeaderboardHandler(reader, failingCache{memory.NewLeaderboardCache()}, nil)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, SourceStore, res.Source)
	assert.Equal(t, 100, reader.limit)
}

func TestGetLeaderboard_StoreError(t *testing.T) {
	reader := &stubReader{err: errors.New("db down")}
	h := NewGetLeaderboardHandler(reader, nil, nil)

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: 10})
	require.Error(t, err)
}
