// Package gamification holds the domain model of the Campus Hub points and
// achievements engine.
//
// The package defines:
//
//   - Value objects: Source, PointsTable, Level, Condition
//   - Entities: User (gamification aggregate), PointsEntry, Achievement, UserAchievement
//   - Domain services: PointsLedger, LevelFor / PointsToNextLevel
//   - Repository contracts: Store, Tx, LedgerReader, AchievementRepository, ActivityCounter
//
// # Invariants
//
// For every user the following always hold:
//
//  1. User.TotalPoints equals the sum of that user's ledger entries
//  2. User.Level equals LevelFor(User.ExperiencePoints)
//  3. A (user, achievement) pair is earned at most once
//  4. Every UserAchievement is backed by a ledger entry with SourceAchievement
//
// The package only depends on the standard library and the shared kernel.
// Implementations of the repository contracts live in infrastructure/persistence.
//
// # Levels
//
// Every 1000 experience points is one level and level numbering starts at 1:
//
//	LevelFor(0)    // 1
//	LevelFor(999)  // 1
//	LevelFor(1000) // 2
//
// # Conditions
//
// Unlock rules are structured values:
//
//	Condition{Kind: ConditionPostCount, Threshold: 10}
//
// Legacy free-text rules ("posts 10", "first comment") are migrated with
// ParseCondition, which keeps the historical match order.
package gamification
