package gamification

import (
	"github.com/campushub/gamification/internal/domain/shared"
)

const domainName = "gamification"

// Domain errors. All of them are *shared.DomainError values, so callers can
// match either the sentinel itself or its base kind with errors.Is.
var (
	// ErrInvalidUser is returned when the user does not exist.
	ErrInvalidUser = shared.NewDomainError(domainName+".user", shared.ErrNotFound, "user does not exist")

	// ErrUnknownSource is returned when a source has no entry in the points table.
	ErrUnknownSource = shared.NewDomainError(domainName+".award", shared.ErrInvalidInput, "unknown points source")

	// ErrInvalidSource is returned by the ledger for a source outside the closed set.
	ErrInvalidSource = shared.NewDomainError(domainName+".ledger", shared.ErrInvalidInput, "invalid points source")

	// ErrNonPositivePoints is returned when the resolved amount is zero or negative.
	ErrNonPositivePoints = shared.NewDomainError(domainName+".award", shared.ErrValidation, "points must be positive")

	// ErrAlreadyEarned is returned when the user already holds the achievement.
	ErrAlreadyEarned = shared.NewDomainError(domainName+".achievement", shared.ErrAlreadyExists, "achievement already earned")

	// ErrAchievementNotFound is returned when the achievement does not exist.
	ErrAchievementNotFound = shared.NewDomainError(domainName+".achievement", shared.ErrNotFound, "achievement not found")

	// ErrInvalidAchievement is returned by NewAchievement for malformed catalog data.
	ErrInvalidAchievement = shared.NewDomainError(domainName+".achievement", shared.ErrValidation, "invalid achievement")
)
