package memory

import (
	"context"
	"sync"

	"github.com/campushub/gamification/internal/domain/gamification"
)

// LeaderboardCache is an in-process gamification.LeaderboardCache used when
// Redis is not configured.
type LeaderboardCache struct {
	mu      sync.RWMutex
	warm    bool
	entries map[string]gamification.LeaderboardEntry
}

var _ gamification.LeaderboardCache = (*LeaderboardCache)(nil)

// NewLeaderboardCache creates a cold cache.
func NewLeaderboardCache() *LeaderboardCache {
	return &LeaderboardCache{entries: make(map[string]gamification.LeaderboardEntry)}
}

// Top implements gamification.LeaderboardCache.
func (c *LeaderboardCache) Top(_ context.Context, limit int) ([]gamification.LeaderboardEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.warm {
		return nil, gamification.ErrLeaderboardCold
	}

	list := make([]gamification.LeaderboardEntry, 0, len(c.entries))
	for _, e := range c.entries {
		list = append(list, e)
	}
	gamification.RankEntries(list)

	if limit < 0 {
		limit = 0
	}
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Upsert implements gamification.LeaderboardCache.
func (c *LeaderboardCache) Upsert(_ context.Context, entry gamification.LeaderboardEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.warm {
		c.entries[entry.UserID] = entry
	}
	return nil
}

// Rebuild implements gamification.LeaderboardCache.
func (c *LeaderboardCache) Rebuild(_ context.Context, entries []gamification.LeaderboardEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]gamification.LeaderboardEntry, len(entries))
	for _, e := range entries {
		c.entries[e.UserID] = e
	}
	c.warm = true
	return nil
}
