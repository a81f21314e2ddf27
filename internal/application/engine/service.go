// Package engine contains the gamification use cases: awarding points,
// unlocking achievements and reading user progress.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushub/gamification/internal/domain/gamification"
	"github.com/campushub/gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GAMIFICATION SERVICE
// The only mutator of user gamification state. Every award is one transaction
// that locks the user row, appends the ledger entry and updates the aggregate.
// Domain events are published after commit.
// ══════════════════════════════════════════════════════════════════════════════

// Service orchestrates the ledger, level calculator and achievement catalog.
type Service struct {
	store     gamification.Store
	table     gamification.PointsTable
	ledger    *gamification.PointsLedger
	catalog   *Catalog
	evaluator *Evaluator
	publisher shared.EventPublisher
	logger    *slog.Logger

	newID func() string
	now   func() time.Time
}

// NewService creates a Service. table is copied, so later changes by the
// caller do not leak into the service. publisher may be nil.
func NewService(
	store gamification.Store,
	table gamification.PointsTable,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	opts ...Option,
) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("gamification service: store is required")
	}
	if table == nil {
		table = gamification.DefaultPointsTable()
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		store:     store,
		table:     table.Clone(),
		publisher: publisher,
		logger:    logger.With("component", "gamification_service"),
		newID:     defaultID,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.ledger = gamification.NewPointsLedger(store.Ledger(), s.newID).WithClock(s.now)
	s.catalog = NewCatalog(store.Achievements(), logger)
	s.evaluator = NewEvaluator(s.catalog, store.Users(), store.Activity(), s, logger)

	return s, nil
}

// Catalog returns the achievement catalog used by the service.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Ledger returns the points ledger used by the service.
func (s *Service) Ledger() *gamification.PointsLedger {
	return s.ledger
}

// PointsTable returns a copy of the configured points table.
func (s *Service) PointsTable() gamification.PointsTable {
	return s.table.Clone()
}

// ─────────────────────────────────────────────────────────────────────────────
// Commands
// ─────────────────────────────────────────────────────────────────────────────

// AwardPoints credits points to a user.
//
// Without WithPoints the amount comes from the points table. Sources whose
// default is zero (achievement, admin_bonus) therefore always need an
// explicit amount.
//
// Errors: ErrUnknownSource, ErrNonPositivePoints, ErrInvalidUser.
func (s *Service) AwardPoints(ctx context.Context, userID string, source gamification.Source, opts ...AwardOption) (*AwardResult, error) {
	var o awardOptions
	for _, opt := range opts {
		opt(&o)
	}

	points, ok := s.table.PointsFor(source)
	if !ok {
		return nil, fmt.Errorf("%w: %q", gamification.ErrUnknownSource, source)
	}
	if o.points != nil {
		points = *o.points
	}
	if points <= 0 {
		return nil, gamification.ErrNonPositivePoints
	}

	description := o.description
	if description == "" {
		description = gamification.DefaultDescription(source)
	}

	var result *AwardResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx gamification.Tx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		result, err = s.credit(ctx, tx, user, points, source, description)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("points awarded",
		"user_id", userID,
		"source", source,
		"points", points,
		"total_points", result.TotalPoints,
		"level", result.Level,
	)
	s.publishAward(result)

	return result, nil
}

// AwardAchievement unlocks an achievement for a user and credits its points
// in the same transaction.
//
// Errors: ErrAchievementNotFound, ErrInvalidUser, ErrAlreadyEarned, and
// ErrNonPositivePoints for an unearned achievement worth zero points, in
// which case nothing is unlocked. ErrAlreadyEarned wins over
// ErrNonPositivePoints.
func (s *Service) AwardAchievement(ctx context.Context, userID, achievementID string) (*AchievementResult, error) {
	achievement, err := s.store.Achievements().GetByID(ctx, achievementID)
	if err != nil {
		return nil, err
	}
	result := &AchievementResult{
		Achievement:   achievement,
		PointsAwarded: achievement.Points,
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx gamification.Tx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}

		exists, err := tx.UserAchievementExists(ctx, userID, achievementID)
		if err != nil {
			return fmt.Errorf("check user achievement: %w", err)
		}
		if exists {
			return gamification.ErrAlreadyEarned
		}
		if achievement.Points <= 0 {
			return fmt.Errorf("achievement %q: %w", achievement.Name, gamification.ErrNonPositivePoints)
		}

		ua := &gamification.UserAchievement{
			ID:            s.newID(),
			UserID:        userID,
			AchievementID: achievementID,
			EarnedAt:      s.now().UTC(),
			Progress:      gamification.CompletedProgress,
		}
		if err := tx.InsertUserAchievement(ctx, ua); err != nil {
			return err
		}
		result.UserAchievementID = ua.ID

		award, err := s.credit(ctx, tx, user, achievement.Points, gamification.SourceAchievement,
			"Achievement unlocked: "+achievement.Name)
		if err != nil {
			return err
		}
		result.Award = award
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("achievement unlocked",
		"user_id", userID,
		"achievement", achievement.Code,
		"points", achievement.Points,
	)
	s.publishAward(result.Award)
	s.publish(shared.NewAchievementUnlockedEvent(userID, achievement.ID, achievement.Code, achievement.Name, achievement.Points))

	return result, nil
}

// CheckAchievements evaluates the catalog for the user and unlocks every
// satisfied achievement.
func (s *Service) CheckAchievements(ctx context.Context, userID string) ([]*AchievementResult, error) {
	return s.evaluator.Check(ctx, userID)
}

// credit appends the ledger entry and updates the locked user inside tx.
func (s *Service) credit(
	ctx context.Context,
	tx gamification.Tx,
	user *gamification.User,
	points int,
	source gamification.Source,
	description string,
) (*AwardResult, error) {
	entryID, err := s.ledger.Record(ctx, tx, user.ID, points, source, description)
	if err != nil {
		return nil, err
	}

	change, err := user.Credit(points, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := tx.SaveUserTotals(ctx, user); err != nil {
		return nil, fmt.Errorf("save user totals: %w", err)
	}

	res := &AwardResult{
		UserID:           user.ID,
		EntryID:          entryID,
		Source:           source,
		Points:           points,
		TotalPoints:      user.TotalPoints,
		ExperiencePoints: user.ExperiencePoints,
		Level:            user.Level,
		LevelUp:          change.Up(),
	}
	if res.LevelUp {
		res.LevelChange = change.Delta()
	}
	return res, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

// GetUserStats returns a read-only snapshot of the user's progress.
// PointsBySource contains every known source, zero when unused.
func (s *Service) GetUserStats(ctx context.Context, userID string) (*UserStats, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	posts, err := s.store.Activity().CountPosts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}
	comments, err := s.store.Activity().CountComments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}
	achievements, err := s.store.Achievements().CountEarned(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count achievements: %w", err)
	}
	bySource, err := s.ledger.BySource(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("points by source: %w", err)
	}

	return &UserStats{
		UserID:            user.ID,
		Username:          user.Username,
		Level:             user.Level,
		TotalPoints:       user.TotalPoints,
		ExperiencePoints:  user.ExperiencePoints,
		TotalPosts:        posts,
		TotalComments:     comments,
		TotalAchievements: achievements,
		PointsBySource:    bySource,
		PointsToNextLevel: user.PointsToNextLevel(),
	}, nil
}

// Leaderboard returns the top users by total points. limit is clamped to
// 1..100 and defaults to 50.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]gamification.LeaderboardEntry, error) {
	users, err := s.store.Users().TopByPoints(ctx, shared.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}

	entries := make([]gamification.LeaderboardEntry, len(users))
	for i, u := range users {
		entries[i] = gamification.EntryFor(u)
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// UserAchievements returns the achievements the user earned, newest first.
func (s *Service) UserAchievements(ctx context.Context, userID string) ([]*gamification.EarnedAchievement, error) {
	if _, err := s.store.Users().GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.Achievements().ListEarned(ctx, userID)
}

// PointsHistory returns the user's latest ledger entries, newest first.
func (s *Service) PointsHistory(ctx context.Context, userID string, limit int) ([]*gamification.PointsEntry, error) {
	if _, err := s.store.Users().GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.ledger.HistoryFor(ctx, userID, limit)
}

// AuditUser compares the cached aggregate with the ledger. It never writes.
func (s *Service) AuditUser(ctx context.Context, user *gamification.User) (AuditReport, error) {
	sum, err := s.ledger.TotalFor(ctx, user.ID)
	if err != nil {
		return AuditReport{}, fmt.Errorf("ledger total: %w", err)
	}
	return AuditReport{
		UserID:           user.ID,
		TotalPoints:      user.TotalPoints,
		LedgerTotal:      sum,
		ExperiencePoints: user.ExperiencePoints,
		Level:            user.Level,
		ExpectedLevel:    gamification.LevelFor(user.ExperiencePoints),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Events
// ─────────────────────────────────────────────────────────────────────────────

func (s *Service) publishAward(r *AwardResult) {
	if r == nil {
		return
	}
	s.publish(shared.NewPointsAwardedEvent(r.UserID, r.EntryID, string(r.Source), r.Points, r.TotalPoints, r.Level))
	if r.LevelUp {
		s.publish(shared.NewLevelUpEvent(r.UserID, r.Level-r.LevelChange, r.Level))
	}
}

// publish never fails the caller: the award is already committed.
func (s *Service) publish(event shared.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Warn("failed to publish event",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}
}
