package postgres

import (
	"context"
	"fmt"

	"github.com/campushub/gamification/internal/domain/gamification"
	"github.com/campushub/gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements gamification.LedgerReader on points_history.
// Writes go through the award transaction, never through this type.
type LedgerRepository struct {
	db Querier
}

// NewLedgerRepository creates a LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{db: conn.Pool()}
}

// SumForUser returns the ledger sum for the user.
func (r *LedgerRepository) SumForUser(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COALESCE(SUM(points), 0) FROM points_history WHERE user_id = $1`

	var sum int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum ledger for %s: %w", userID, err)
	}
	return sum, nil
}

// ListForUser returns entries newest first. Equal timestamps fall back to
// the entry ID so paging is stable.
func (r *LedgerRepository) ListForUser(ctx context.Context, userID string, page shared.Page) ([]*gamification.PointsEntry, error) {
	page = shared.NewPage(page.Limit, page.Offset)
	query := `
		SELECT id, user_id, points, source, description, created_at
		FROM points_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list ledger for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []*gamification.PointsEntry
	for rows.Next() {
		var e gamification.PointsEntry
		var source string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Points, &source, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan points entry: %w", err)
		}
		e.Source = gamification.Source(source)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// SumBySource returns per-source sums for the user.
func (r *LedgerRepository) SumBySource(ctx context.Context, userID string) (map[gamification.Source]int64, error) {
	query := `
		SELECT source, SUM(points)
		FROM points_history
		WHERE user_id = $1
		GROUP BY source
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("sum ledger by source for %s: %w", userID, err)
	}
	defer rows.Close()

	out := make(map[gamification.Source]int64)
	for rows.Next() {
		var source string
		var sum int64
		if err := rows.Scan(&source, &sum); err != nil {
			return nil, fmt.Errorf("scan source sum: %w", err)
		}
		out[gamification.Source(source)] = sum
	}
	return out, rows.Err()
}
