package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campushub/gamification/internal/domain/gamification"
	"github.com/campushub/gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

const userColumns = `id, username, is_verified, is_staff, total_points, experience_points, level, created_at, updated_at`

// UserRepository implements gamification.UserRepository.
type UserRepository struct {
	db Querier
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{db: conn.Pool()}
}

// GetByID returns a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*gamification.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

// TopByPoints returns the leaderboard order: total points, then username.
func (r *UserRepository) TopByPoints(ctx context.Context, limit int) ([]*gamification.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY total_points DESC, username ASC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query top users: %w", err)
	}
	return collectUsers(rows)
}

// List pages through users ordered by ID.
func (r *UserRepository) List(ctx context.Context, page shared.Page) ([]*gamification.User, error) {
	page = shared.NewPage(page.Limit, page.Offset)
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return collectUsers(rows)
}

// Upsert inserts the user or refreshes its profile columns. Point counters
// are never overwritten here; they move only through awards.
func (r *UserRepository) Upsert(ctx context.Context, u *gamification.User) error {
	query := `
		INSERT INTO users (id, username, is_verified, is_staff, total_points, experience_points, level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			is_verified = EXCLUDED.is_verified,
			is_staff = EXCLUDED.is_staff,
			updated_at = EXCLUDED.updated_at
	`

	level := u.Level
	if level == 0 {
		level = gamification.LevelFor(u.ExperiencePoints)
	}

	_, err := r.db.Exec(ctx, query,
		u.ID, u.Username, u.IsVerified, u.IsStaff,
		u.TotalPoints, u.ExperiencePoints, level,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("gamification.user", shared.ErrAlreadyExists, "username already taken", err)
		}
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanUser(row pgx.Row) (*gamification.User, error) {
	var u gamification.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.IsVerified,
		&u.IsStaff,
		&u.TotalPoints,
		&u.ExperiencePoints,
		&u.Level,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, gamification.ErrInvalidUser
		}
		return nil, err
	}
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]*gamification.User, error) {
	defer rows.Close()

	var out []*gamification.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
