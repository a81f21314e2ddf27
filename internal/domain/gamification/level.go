package gamification

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL CALCULATOR
// ══════════════════════════════════════════════════════════════════════════════

// PointsPerLevel is the width of one level band in experience points.
const PointsPerLevel = 1000

// MinLevel is the level of a user with no experience.
const MinLevel = 1

// LevelFor maps experience points to a level: xp/1000 + 1.
// Negative input is treated as zero so the result is always at least MinLevel.
func LevelFor(xp int64) int {
	if xp < 0 {
		return MinLevel
	}
	return int(xp/PointsPerLevel) + MinLevel
}

// PointsToNextLevel returns (LevelFor(xp)+1)*1000 - xp.
//
// The result is always positive. Note that it counts up to the start of the
// band after next: at xp=0 it returns 2000, not 1000.
func PointsToNextLevel(xp int64) int64 {
	if xp < 0 {
		xp = 0
	}
	return int64(LevelFor(xp)+1)*PointsPerLevel - xp
}

// LevelProgress reports how far into the current level band xp is, in percent.
func LevelProgress(xp int64) int {
	if xp < 0 {
		return 0
	}
	return int(xp%PointsPerLevel) * 100 / PointsPerLevel
}
