package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/campushub/gamification/internal/domain/gamification"
	"github.com/campushub/gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// RebuildStats contains statistics from a rebuild run.
type RebuildStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	TotalUsers  int
}

// RebuildLeaderboardJob replaces the leaderboard projection with a fresh
// ranking read from the store. It warms a cold cache on its first run and
// repairs any updates the projection missed since.
type RebuildLeaderboardJob struct {
	users    gamification.UserRepository
	cache    gamification.LeaderboardCache
	logger   *slog.Logger
	pageSize int

	last atomic.Pointer[RebuildStats]
}

// NewRebuildLeaderboardJob creates the job.
func NewRebuildLeaderboardJob(
	users gamification.UserRepository,
	cache gamification.LeaderboardCache,
	logger *slog.Logger,
	pageSize int,
) *RebuildLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RebuildLeaderboardJob{
		users:    users,
		cache:    cache,
		logger:   logger.With("job", "rebuild_leaderboard"),
		pageSize: shared.ClampLimit(pageSize),
	}
}

// Name implements scheduler.Job.
func (j *RebuildLeaderboardJob) Name() string { return "rebuild_leaderboard" }

// Description implements scheduler.Job.
func (j *RebuildLeaderboardJob) Description() string {
	return "Rebuilds the leaderboard cache from user totals"
}

// Run implements scheduler.Job.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	stats := RebuildStats{StartedAt: time.Now()}

	var entries []gamification.LeaderboardEntry
	page := shared.NewPage(j.pageSize, 0)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		users, err := j.users.List(ctx, page)
		if err != nil {
			return fmt.Errorf("list users at offset %d: %w", page.Offset, err)
		}
		for _, u := range users {
			entries = append(entries, gamification.EntryFor(u))
		}

		if len(users) < page.Limit {
			break
		}
		page = page.Next()
	}

	gamification.RankEntries(entries)

	if err := j.cache.Rebuild(ctx, entries); err != nil {
		return fmt.Errorf("rebuild leaderboard cache: %w", err)
	}

	stats.TotalUsers = len(entries)
	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.last.Store(&stats)

	j.logger.Info("leaderboard rebuilt",
		"total_users", stats.TotalUsers,
		"duration", stats.Duration.String(),
	)
	return nil
}

// LastStats returns the stats of the last completed run, or nil.
func (j *RebuildLeaderboardJob) LastStats() *RebuildStats {
	return j.last.Load()
}
