package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campushub/gamification/internal/domain/gamification"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

const achievementColumns = `
	a.id, a.code, a.name, a.description, a.type, a.tier, a.points, a.icon,
	a.condition_description, a.condition_kind, a.condition_threshold,
	a.is_active, a.created_at, a.updated_at`

// AchievementRepository implements gamification.AchievementRepository.
type AchievementRepository struct {
	db Querier
}

// NewAchievementRepository creates an AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{db: conn.Pool()}
}

// ListActive returns active achievements in catalog order.
func (r *AchievementRepository) ListActive(ctx context.Context) ([]*gamification.Achievement, error) {
	return r.list(ctx, `SELECT `+achievementColumns+` FROM achievements a WHERE a.is_active`)
}

// ListAll returns every achievement in catalog order.
func (r *AchievementRepository) ListAll(ctx context.Context) ([]*gamification.Achievement, error) {
	return r.list(ctx, `SELECT `+achievementColumns+` FROM achievements a`)
}

// Sorting happens in Go so the order does not depend on the database collation.
func (r *AchievementRepository) list(ctx context.Context, query string) ([]*gamification.Achievement, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var out []*gamification.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	gamification.SortAchievements(out)
	return out, nil
}

// GetByID returns an achievement by ID.
func (r *AchievementRepository) GetByID(ctx context.Context, id string) (*gamification.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements a WHERE a.id = $1`

	a, err := scanAchievement(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, gamification.ErrAchievementNotFound
		}
		return nil, fmt.Errorf("get achievement %s: %w", id, err)
	}
	return a, nil
}

// GetOrCreate inserts the achievement unless its code or name already exists.
func (r *AchievementRepository) GetOrCreate(ctx context.Context, a *gamification.Achievement) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	insert := `
		INSERT INTO achievements (
			id, code, name, description, type, tier, points, icon,
			condition_description, condition_kind, condition_threshold,
			is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT DO NOTHING
		RETURNING id
	`

	var id string
	err := r.db.QueryRow(ctx, insert,
		a.ID, a.Code, a.Name, a.Description, string(a.Type), string(a.Tier), a.Points, a.Icon,
		a.ConditionDescription, string(a.Condition.Kind), a.Condition.Threshold,
		a.IsActive, a.CreatedAt, a.UpdatedAt,
	).Scan(&id)
	if err == nil {
		a.ID = id
		return true, nil
	}
	if !IsNoRows(err) {
		return false, fmt.Errorf("insert achievement %s: %w", a.Code, err)
	}

	existing := `SELECT id FROM achievements WHERE code = $1 OR name = $2 ORDER BY (code = $1) DESC LIMIT 1`
	if err := r.db.QueryRow(ctx, existing, a.Code, a.Name).Scan(&id); err != nil {
		return false, fmt.Errorf("find existing achievement %s: %w", a.Code, err)
	}
	a.ID = id
	return false, nil
}

// EarnedIDs returns the achievement IDs the user holds.
func (r *AchievementRepository) EarnedIDs(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT achievement_id FROM user_achievements WHERE user_id = $1 ORDER BY achievement_id`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list earned ids for %s: %w", userID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan earned id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListEarned returns earned achievements, most recent first.
func (r *AchievementRepository) ListEarned(ctx context.Context, userID string) ([]*gamification.EarnedAchievement, error) {
	query := `
		SELECT ` + achievementColumns + `, ua.earned_at, ua.progress
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = $1
		ORDER BY ua.earned_at DESC, a.name ASC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list earned for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []*gamification.EarnedAchievement
	for rows.Next() {
		var (
			a      gamification.Achievement
			aType  string
			tier   string
			kind   string
			earned gamification.EarnedAchievement
		)
		err := rows.Scan(
			&a.ID, &a.Code, &a.Name, &a.Description, &aType, &tier, &a.Points, &a.Icon,
			&a.ConditionDescription, &kind, &a.Condition.Threshold,
			&a.IsActive, &a.CreatedAt, &a.UpdatedAt,
			&earned.EarnedAt, &earned.Progress,
		)
		if err != nil {
			return nil, fmt.Errorf("scan earned achievement: %w", err)
		}
		a.Type = gamification.AchievementType(aType)
		a.Tier = gamification.Tier(tier)
		a.Condition.Kind = gamification.ConditionKind(kind)
		earned.Achievement = &a
		out = append(out, &earned)
	}
	return out, rows.Err()
}

// CountEarned returns how many achievements the user holds.
func (r *AchievementRepository) CountEarned(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_achievements WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count earned for %s: %w", userID, err)
	}
	return n, nil
}

func scanAchievement(row pgx.Row) (*gamification.Achievement, error) {
	var (
		a     gamification.Achievement
		aType string
		tier  string
		kind  string
	)
	err := row.Scan(
		&a.ID, &a.Code, &a.Name, &a.Description, &aType, &tier, &a.Points, &a.Icon,
		&a.ConditionDescription, &kind, &a.Condition.Threshold,
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Type = gamification.AchievementType(aType)
	a.Tier = gamification.Tier(tier)
	a.Condition.Kind = gamification.ConditionKind(kind)
	return &a, nil
}
