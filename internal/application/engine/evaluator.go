package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/campushub/gamification/internal/domain/gamification"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT EVALUATOR
// Decides which unearned achievements a user now satisfies and unlocks them
// one by one. Each unlock is its own transaction, so a failure in the middle
// of a batch leaves earlier unlocks in place and skips only the failed one.
// ══════════════════════════════════════════════════════════════════════════════

// achievementAwarder unlocks a single achievement. Implemented by Service.
type achievementAwarder interface {
	AwardAchievement(ctx context.Context, userID, achievementID string) (*AchievementResult, error)
}

// Evaluator scans the catalog against a user's statistics.
type Evaluator struct {
	catalog *Catalog
	users   gamification.UserRepository
	counter gamification.ActivityCounter
	awarder achievementAwarder
	logger  *slog.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(
	catalog *Catalog,
	users gamification.UserRepository,
	counter gamification.ActivityCounter,
	awarder achievementAwarder,
	logger *slog.Logger,
) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		catalog: catalog,
		users:   users,
		counter: counter,
		awarder: awarder,
		logger:  logger.With("component", "achievement_evaluator"),
	}
}

// Snapshot collects the statistics conditions are evaluated against.
func (e *Evaluator) Snapshot(ctx context.Context, user *gamification.User) (gamification.UserProgress, error) {
	posts, err := e.counter.CountPosts(ctx, user.ID)
	if err != nil {
		return gamification.UserProgress{}, fmt.Errorf("count posts: %w", err)
	}
	comments, err := e.counter.CountComments(ctx, user.ID)
	if err != nil {
		return gamification.UserProgress{}, fmt.Errorf("count comments: %w", err)
	}

	return gamification.UserProgress{
		Posts:       posts,
		Comments:    comments,
		TotalPoints: user.TotalPoints,
		Level:       user.Level,
	}, nil
}

// Check unlocks every unearned active achievement whose condition holds and
// returns the unlocks in catalog order. A second call with no activity in
// between returns an empty slice.
func (e *Evaluator) Check(ctx context.Context, userID string) ([]*AchievementResult, error) {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates, err := e.catalog.UnearnedFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	progress, err := e.Snapshot(ctx, user)
	if err != nil {
		return nil, err
	}

	var unlocked []*AchievementResult
	for _, a := range candidates {
		if !a.EffectiveCondition().SatisfiedBy(progress) {
			continue
		}

		res, err := e.awarder.AwardAchievement(ctx, userID, a.ID)
		switch {
		case errors.Is(err, gamification.ErrAlreadyEarned):
			// Another request unlocked it between the scan and the award.
			e.logger.Debug("achievement already earned",
				"user_id", userID,
				"achievement", a.Code,
			)
			continue
		case err != nil:
			e.logger.Warn("failed to award achievement, skipping",
				"user_id", userID,
				"achievement", a.Code,
				"error", err,
			)
			continue
		}

		unlocked = append(unlocked, res)

		// Later conditions in this batch see the bonus.
		progress.TotalPoints = res.Award.TotalPoints
		progress.Level = res.Award.Level
	}

	if len(unlocked) > 0 {
		e.logger.Info("achievements unlocked",
			"user_id", userID,
			"count", len(unlocked),
		)
	}

	return unlocked, nil
}
