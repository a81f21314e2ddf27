// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/campushub/gamification/internal/domain/gamification"
	"github.com/campushub/gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Top users by total points. Reads the cached projection first and falls
// back to the store when the cache is cold or unavailable.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery holds the request parameters.
type GetLeaderboardQuery struct {
	// Limit is clamped to 1..100; zero means the default of 50.
	Limit int
}

// Normalize clamps the limit.
func (q *GetLeaderboardQuery) Normalize() {
	q.Limit = shared.ClampLimit(q.Limit)
}

// Result sources.
const (
	SourceCache = "cache"
	SourceStore = "store"
)

// GetLeaderboardResult is the leaderboard page.
type GetLeaderboardResult struct {
	Entries     []gamification.LeaderboardEntry `json:"entries"`
	Source      string                          `json:"source"`
	GeneratedAt time.Time                       `json:"generated_at"`
}

// LeaderboardReader reads the leaderboard from the store.
type LeaderboardReader interface {
	Leaderboard(ctx context.Context, limit int) ([]gamification.LeaderboardEntry, error)
}

// GetLeaderboardHandler handles leaderboard reads.
type GetLeaderboardHandler struct {
	reader LeaderboardReader
	cache  gamification.LeaderboardCache
	logger *slog.Logger
}

// NewGetLeaderboardHandler creates the handler. cache may be nil.
func NewGetLeaderboardHandler(
	reader LeaderboardReader,
	cache gamification.LeaderboardCache,
	logger *slog.Logger,
) *GetLeaderboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetLeaderboardHandler{
		reader: reader,
		cache:  cache,
		logger: logger.With("query", "get_leaderboard"),
	}
}

// Handle runs the query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	query.Normalize()

	if entries, ok := h.tryGetFromCache(ctx, query.Limit); ok {
		return &GetLeaderboardResult{
			Entries:     entries,
			Source:      SourceCache,
			GeneratedAt: time.Now().UTC(),
		}, nil
	}

	entries, err := h.reader.Leaderboard(ctx, query.Limit)
	if err != nil {
		return nil, shared.WrapError("query.GetLeaderboard", shared.ErrServiceUnavailable, "failed to get leaderboard", err)
	}

	return &GetLeaderboardResult{
		Entries:     entries,
		Source:      SourceStore,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (h *GetLeaderboardHandler) tryGetFromCache(ctx context.Context, limit int) ([]gamification.LeaderboardEntry, bool) {
	if h.cache == nil {
		return nil, false
	}

	entries, err := h.cache.Top(ctx, limit)
	if err != nil {
		if !errors.Is(err, gamification.ErrLeaderboardCold) {
			h.logger.Warn("leaderboard cache read failed", "error", err)
		}
		return nil, false
	}
	return entries, true
}
