package gamification

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// User is the gamification view of a network member.
//
// TotalPoints and ExperiencePoints are separate counters. Today every award
// moves both by the same amount, but nothing outside this type may assume they
// stay equal.
type User struct {
	ID         string
	Username   string
	IsVerified bool
	IsStaff    bool

	TotalPoints      int64
	ExperiencePoints int64
	Level            int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LevelChange describes the effect of one credit on a user's level.
type LevelChange struct {
	OldLevel int
	NewLevel int
}

// Delta returns how many levels were gained.
func (c LevelChange) Delta() int {
	return c.NewLevel - c.OldLevel
}

// Up reports whether the level increased.
func (c LevelChange) Up() bool {
	return c.NewLevel > c.OldLevel
}

// Credit adds points to both counters and recomputes the level.
// It refuses non-positive amounts so the counters never decrease.
func (u *User) Credit(points int, now time.Time) (LevelChange, error) {
	if points <= 0 {
		return LevelChange{}, ErrNonPositivePoints
	}

	old := u.Level
	u.TotalPoints += int64(points)
	u.ExperiencePoints += int64(points)
	u.Level = LevelFor(u.ExperiencePoints)
	u.UpdatedAt = now

	return LevelChange{OldLevel: old, NewLevel: u.Level}, nil
}

// PointsToNextLevel returns the display value for the user's next level.
func (u *User) PointsToNextLevel() int64 {
	return PointsToNextLevel(u.ExperiencePoints)
}

// Validate checks the aggregate invariants.
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user: empty id")
	}
	if u.TotalPoints < 0 || u.ExperiencePoints < 0 {
		return fmt.Errorf("user %s: negative counters (total=%d, xp=%d)", u.ID, u.TotalPoints, u.ExperiencePoints)
	}
	if want := LevelFor(u.ExperiencePoints); u.Level != want {
		return fmt.Errorf("user %s: level %d does not match experience %d (want %d)", u.ID, u.Level, u.ExperiencePoints, want)
	}
	return nil
}
