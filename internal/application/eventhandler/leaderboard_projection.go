package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campushub/gamification/internal/domain/gamification"
	"github.com/campushub/gamification/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// LEADERBOARD PROJECTION
// Keeps the cached leaderboard in step with awards between full rebuilds.
// The store stays the source of truth: the handler re-reads the user and
// writes what it finds.
// ═══════════════════════════════════════════════════════════════════════════

// LeaderboardProjection applies points.awarded events to a LeaderboardCache.
type LeaderboardProjection struct {
	users  gamification.UserRepository
	cache  gamification.LeaderboardCache
	logger *slog.Logger
}

// NewLeaderboardProjection creates the projection handler.
func NewLeaderboardProjection(
	users gamification.UserRepository,
	cache gamification.LeaderboardCache,
	logger *slog.Logger,
) *LeaderboardProjection {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderboardProjection{
		users:  users,
		cache:  cache,
		logger: logger.With("handler", "leaderboard_projection"),
	}
}

// Handle implements shared.EventHandler.
func (p *LeaderboardProjection) Handle(ctx context.Context, event shared.Event) error {
	awarded, ok := event.(shared.PointsAwardedEvent)
	if !ok {
		p.logger.Warn("received non-PointsAwardedEvent", "event_type", event.EventType())
		return nil
	}

	user, err := p.users.GetByID(ctx, awarded.UserID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", awarded.UserID, err)
	}

	if err := p.cache.Upsert(ctx, gamification.EntryFor(user)); err != nil {
		p.logger.Warn("leaderboard upsert failed",
			"user_id", awarded.UserID,
			"error", err,
		)
		return err
	}

	p.logger.Debug("leaderboard entry updated",
		"user_id", user.ID,
		"total_points", user.TotalPoints,
	)
	return nil
}

// Register subscribes the projection to points.awarded.
func (p *LeaderboardProjection) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventPointsAwarded, p.Handle)
}

// EventType returns the event type this handler consumes.
func (p *LeaderboardProjection) EventType() shared.EventType {
	return shared.EventPointsAwarded
}
