package gamification

import (
	"context"

	"github.com/campushub/gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence (postgres and memory).
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository reads user aggregates outside of a transaction.
type UserRepository interface {
	// GetByID returns the user. Returns ErrInvalidUser if it does not exist.
	GetByID(ctx context.Context, id string) (*User, error)

	// TopByPoints returns users ordered by total points descending, then username.
	TopByPoints(ctx context.Context, limit int) ([]*User, error)

	// List returns users ordered by ID. Used by batch jobs.
	List(ctx context.Context, page shared.Page) ([]*User, error)
}

// AchievementRepository stores the catalog and earned achievements.
type AchievementRepository interface {
	// ListActive returns active achievements ordered by type, tier, name.
	ListActive(ctx context.Context) ([]*Achievement, error)

	// ListAll returns every achievement, active or not, in catalog order.
	ListAll(ctx context.Context) ([]*Achievement, error)

	// GetByID returns ErrAchievementNotFound if the achievement does not exist.
	GetByID(ctx context.Context, id string) (*Achievement, error)

	// GetOrCreate inserts the achievement unless one with the same code exists.
	// It reports whether a row was created; a.ID is set to the stored ID.
	GetOrCreate(ctx context.Context, a *Achievement) (bool, error)

	// EarnedIDs returns the IDs of achievements the user holds.
	EarnedIDs(ctx context.Context, userID string) ([]string, error)

	// ListEarned returns earned achievements, most recent first.
	ListEarned(ctx context.Context, userID string) ([]*EarnedAchievement, error)

	// CountEarned returns the number of achievements the user holds.
	CountEarned(ctx context.Context, userID string) (int64, error)
}

// ActivityCounter counts content authored by a user. The content itself is
// owned by other services.
type ActivityCounter interface {
	CountPosts(ctx context.Context, userID string) (int64, error)
	CountComments(ctx context.Context, userID string) (int64, error)
}

// Tx is the unit of work for one award. Every method runs inside the same
// database transaction.
type Tx interface {
	LedgerWriter

	// LockUser loads the user and holds an exclusive lock on it until the
	// transaction ends. Returns ErrInvalidUser if it does not exist.
	LockUser(ctx context.Context, userID string) (*User, error)

	// SaveUserTotals persists TotalPoints, ExperiencePoints and Level.
	SaveUserTotals(ctx context.Context, u *User) error

	// UserAchievementExists reports whether the pair is already earned.
	UserAchievementExists(ctx context.Context, userID, achievementID string) (bool, error)

	// InsertUserAchievement returns ErrAlreadyEarned on a duplicate pair.
	InsertUserAchievement(ctx context.Context, ua *UserAchievement) error
}

// Store groups the repositories and opens transactions.
type Store interface {
	// WithinTx runs fn in a transaction. It commits when fn returns nil and
	// rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Users() UserRepository
	Ledger() LedgerReader
	Achievements() AchievementRepository
	Activity() ActivityCounter
}
