package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campushub/gamification/internal/domain/gamification"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store implements gamification.Store on PostgreSQL.
//
// Awards for the same user are serialised by SELECT ... FOR UPDATE on the
// users row; the unique (user_id, achievement_id) index is the last guard
// against a duplicate unlock.
type Store struct {
	conn *Connection

	users        *UserRepository
	ledger       *LedgerRepository
	achievements *AchievementRepository
	activity     *ActivityRepository
}

var _ gamification.Store = (*Store)(nil)

// NewStore creates a Store on top of conn.
func NewStore(conn *Connection) *Store {
	pool := conn.Pool()
	return &Store{
		conn:         conn,
		users:        &UserRepository{db: pool},
		ledger:       &LedgerRepository{db: pool},
		achievements: &AchievementRepository{db: pool},
		activity:     &ActivityRepository{db: pool},
	}
}

// Users implements gamification.Store.
func (s *Store) Users() gamification.UserRepository { return s.users }

// Ledger implements gamification.Store.
func (s *Store) Ledger() gamification.LedgerReader { return s.ledger }

// Achievements implements gamification.Store.
func (s *Store) Achievements() gamification.AchievementRepository { return s.achievements }

// Activity implements gamification.Store.
func (s *Store) Activity() gamification.ActivityCounter { return s.activity }

// WithinTx implements gamification.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx gamification.Tx) error) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, &storeTx{tx: tx})
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTION
// ══════════════════════════════════════════════════════════════════════════════

type storeTx struct {
	tx pgx.Tx
}

func (t *storeTx) LockUser(ctx context.Context, userID string) (*gamification.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
		FOR UPDATE
	`

	u, err := scanUser(t.tx.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("lock user %s: %w", userID, err)
	}
	return u, nil
}

func (t *storeTx) SaveUserTotals(ctx context.Context, u *gamification.User) error {
	query := `
		UPDATE users SET
			total_points = $1,
			experience_points = $2,
			level = $3,
			updated_at = $4
		WHERE id = $5
	`

	tag, err := t.tx.Exec(ctx, query, u.TotalPoints, u.ExperiencePoints, u.Level, u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("save user totals %s: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return gamification.ErrInvalidUser
	}
	return nil
}

func (t *storeTx) AppendEntry(ctx context.Context, e *gamification.PointsEntry) error {
	query := `
		INSERT INTO points_history (id, user_id, points, source, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := t.tx.Exec(ctx, query, e.ID, e.UserID, e.Points, string(e.Source), e.Description, e.CreatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return gamification.ErrInvalidUser
		}
		return fmt.Errorf("insert points entry: %w", err)
	}
	return nil
}

func (t *storeTx) UserAchievementExists(ctx context.Context, userID, achievementID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM user_achievements WHERE user_id = $1 AND achievement_id = $2
		)
	`

	var exists bool
	if err := t.tx.QueryRow(ctx, query, userID, achievementID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user achievement: %w", err)
	}
	return exists, nil
}

func (t *storeTx) InsertUserAchievement(ctx context.Context, ua *gamification.UserAchievement) error {
	query := `
		INSERT INTO user_achievements (id, user_id, achievement_id, earned_at, progress)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := t.tx.Exec(ctx, query, ua.ID, ua.UserID, ua.AchievementID, ua.EarnedAt, ua.Progress)
	if err != nil {
		switch {
		case IsUniqueViolation(err):
			return gamification.ErrAlreadyEarned
		case IsForeignKeyViolation(err):
			return gamification.ErrAchievementNotFound
		}
		return fmt.Errorf("insert user achievement: %w", err)
	}
	return nil
}
