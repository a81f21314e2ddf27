package engine

import (
	"github.com/campushub/gamification/internal/domain/gamification"
)

// AwardResult describes the outcome of a successful AwardPoints call.
type AwardResult struct {
	UserID           string
	EntryID          string
	Source           gamification.Source
	Points           int
	TotalPoints      int64
	ExperiencePoints int64
	Level            int
	LevelUp          bool
	// LevelChange is the number of levels gained, 0 when LevelUp is false.
	LevelChange      int
}

// AchievementResult describes one unlocked achievement.
type AchievementResult struct {
	Achievement       *gamification.Achievement
	UserAchievementID string
	PointsAwarded     int
	Award             *AwardResult
}

// TotalPoints returns the user's total after the unlock.
func (r *AchievementResult) TotalPoints() int64 {
	return r.Award.TotalPoints
}

// Level returns the user's level after the unlock.
func (r *AchievementResult) Level() int {
	return r.Award.Level
}

// LevelUp reports whether the bonus moved the user up a level.
func (r *AchievementResult) LevelUp() bool {
	return r.Award.LevelUp
}

// UserStats is a read-only snapshot of a user's gamification state.
type UserStats struct {
	UserID            string
	Username          string
	Level             int
	TotalPoints       int64
	ExperiencePoints  int64
	TotalPosts        int64
	TotalComments     int64
	TotalAchievements int64
	PointsBySource    map[gamification.Source]int64
	PointsToNextLevel int64
}

// AuditReport describes drift between a user's aggregate and the ledger.
type AuditReport struct {
	UserID           string
	TotalPoints      int64
	LedgerTotal      int64
	ExperiencePoints int64
	Level            int
	ExpectedLevel    int
}

// PointsDrift reports whether the cached total disagrees with the ledger.
func (r AuditReport) PointsDrift() bool {
	return r.TotalPoints != r.LedgerTotal
}

// LevelDrift reports whether the stored level disagrees with the experience.
func (r AuditReport) LevelDrift() bool {
	return r.Level != r.ExpectedLevel
}

// Consistent reports whether the user passes both checks.
func (r AuditReport) Consistent() bool {
	return !r.PointsDrift() && !r.LevelDrift()
}
