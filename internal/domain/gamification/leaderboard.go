package gamification

import (
	"context"
	"errors"
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD READ MODEL
// ══════════════════════════════════════════════════════════════════════════════

// ErrLeaderboardCold is returned by a LeaderboardCache that has not been
// built yet. Readers fall back to the store.
var ErrLeaderboardCold = errors.New("leaderboard cache is cold")

// LeaderboardEntry is one row of the points leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	TotalPoints int64  `json:"total_points"`
	Level       int    `json:"level"`
	IsVerified  bool   `json:"is_verified"`
}

// EntryFor builds an unranked leaderboard entry for u.
func EntryFor(u *User) LeaderboardEntry {
	return LeaderboardEntry{
		UserID:      u.ID,
		Username:    u.Username,
		TotalPoints: u.TotalPoints,
		Level:       u.Level,
		IsVerified:  u.IsVerified,
	}
}

// LeaderboardCache is a read-optimised projection of the leaderboard kept in
// sync from points events and rebuilt periodically from the store.
type LeaderboardCache interface {
	// Top returns the first limit entries, ranked from 1.
	// Returns ErrLeaderboardCold when the projection is not built.
	Top(ctx context.Context, limit int) ([]LeaderboardEntry, error)

	// Upsert updates one user. It is a no-op on a cold projection.
	Upsert(ctx context.Context, entry LeaderboardEntry) error

	// Rebuild replaces the projection with entries.
	Rebuild(ctx context.Context, entries []LeaderboardEntry) error
}

// RankEntries orders entries by total points descending, then username
// ascending, and assigns ranks from 1.
func RankEntries(entries []LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalPoints != entries[j].TotalPoints {
			return entries[i].TotalPoints > entries[j].TotalPoints
		}
		return entries[i].Username < entries[j].Username
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
